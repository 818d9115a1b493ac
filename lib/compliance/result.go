package compliance

import (
	"errors"
)

type Status string

const (
	StatusSuccess       Status = "success"
	StatusNotConfigured Status = "not_configured"
	StatusLoginError    Status = "login_error"
	StatusFailed        Status = "failed"
)

// RunResult is the outcome of one (provider, site) attempt.
type RunResult struct {
	ProviderID string `json:"provider_id"`
	SiteID     string `json:"site_id"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
}

// StatusFor maps the error a unit of work ended with to its status.
func StatusFor(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if errors.Is(err, ErrConfigurationAbsent) {
		return StatusNotConfigured
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return StatusLoginError
	}
	return StatusFailed
}

// NewRunResult builds the RunResult for a unit of work that ended with err.
func NewRunResult(providerID, siteID string, err error) RunResult {
	status := StatusFor(err)
	res := RunResult{
		ProviderID: providerID,
		SiteID:     siteID,
		Status:     status,
	}
	if status == StatusLoginError || status == StatusFailed {
		res.Error = err.Error()
	}
	return res
}

package compliance

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfigurationAbsent means no credential exists for a (provider, site) pair.
// It is not a failure.
var ErrConfigurationAbsent = errors.New("no credential configured")

// AuthenticationError means a login sequence did not reach an authenticated
// state within its budget.
type AuthenticationError struct {
	Site  string
	Cause error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: login failed: %v", e.Site, e.Cause)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// ExtractionError means a specific field or page could not be read.
type ExtractionError struct {
	Field string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NavigationTimeout means a page transition did not complete within its budget.
type NavigationTimeout struct {
	Stage string
	Cause error
}

func (e *NavigationTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for %s: %v", e.Stage, e.Cause)
}

func (e *NavigationTimeout) Unwrap() error {
	return e.Cause
}

// AsNavigationTimeout converts a context deadline error into a NavigationTimeout
// for the given stage, other errors are returned unchanged.
func AsNavigationTimeout(stage string, err error) error {
	if err == nil {
		return nil
	}
	var timeout *NavigationTimeout
	if errors.As(err, &timeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NavigationTimeout{Stage: stage, Cause: err}
	}
	return err
}

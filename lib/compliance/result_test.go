package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err    error
		status Status
	}{
		{err: nil, status: StatusSuccess},
		{err: ErrConfigurationAbsent, status: StatusNotConfigured},
		{err: &AuthenticationError{Site: "cebroker", Cause: errors.New("bad password")}, status: StatusLoginError},
		{
			err:    fmt.Errorf("open session: %w", &AuthenticationError{Site: "netce", Cause: context.DeadlineExceeded}),
			status: StatusLoginError,
		},
		{err: &NavigationTimeout{Stage: "course history", Cause: context.DeadlineExceeded}, status: StatusFailed},
		{err: &ExtractionError{Field: "license list", Cause: errors.New("no rows")}, status: StatusFailed},
		{err: errors.New("boom"), status: StatusFailed},
	}

	for _, test := range testCases {
		require.Equal(t, test.status, StatusFor(test.err), "%v", test.err)
	}
}

func TestNewRunResult(t *testing.T) {
	res := NewRunResult("p1", "cebroker", &AuthenticationError{Site: "cebroker", Cause: errors.New("bad password")})
	require.Equal(t, StatusLoginError, res.Status)
	require.NotEmpty(t, res.Error)

	res = NewRunResult("p2", "cebroker", ErrConfigurationAbsent)
	require.Equal(t, StatusNotConfigured, res.Status)
	require.Empty(t, res.Error)
}

func TestAsNavigationTimeout(t *testing.T) {
	err := AsNavigationTimeout("login", fmt.Errorf("wait: %w", context.DeadlineExceeded))
	var timeout *NavigationTimeout
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, "login", timeout.Stage)

	plain := errors.New("plain")
	require.Equal(t, plain, AsNavigationTimeout("login", plain))
	require.Nil(t, AsNavigationTimeout("login", nil))
}

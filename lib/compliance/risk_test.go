package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultRiskPolicy(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	testCases := []struct {
		remaining *float64
		deadline  string
		expected  Risk
	}{
		{remaining: nil, deadline: "2026-11-01", expected: RiskUnknown},
		{remaining: Float(0), deadline: "2026-11-01", expected: RiskComplete},
		{remaining: Float(4), deadline: "", expected: RiskUnknown},
		{remaining: Float(4), deadline: "2026-10-01", expected: RiskOverdue},
		{remaining: Float(1), deadline: "2026-12-13", expected: RiskAtRisk},
		{remaining: Float(30), deadline: "2026-10-20", expected: RiskAtRisk},
		{remaining: Float(30), deadline: "2027-05-01", expected: RiskOnTrack},
	}

	for _, test := range testCases {
		rec := Record{HoursRemaining: test.remaining, RenewalDeadline: test.deadline}
		require.Equal(t, test.expected, DefaultRiskPolicy(rec, now), "%v %s", test.remaining, test.deadline)
	}
}

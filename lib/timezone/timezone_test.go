package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDaysUntil(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		date   string
		now    time.Time
		expect int
	}{
		{date: "2026-03-02", now: time.Date(2026, time.March, 2, 23, 59, 0, 0, ny), expect: 0},
		{date: "2026-03-03", now: time.Date(2026, time.March, 2, 0, 1, 0, 0, ny), expect: 1},
		{date: "2026-03-01", now: time.Date(2026, time.March, 2, 12, 0, 0, 0, ny), expect: -1},
		// spans the spring daylight saving change
		{date: "2026-03-10", now: time.Date(2026, time.March, 7, 8, 0, 0, 0, ny), expect: 3},
		// spans the fall daylight saving change
		{date: "2026-11-03", now: time.Date(2026, time.October, 31, 8, 0, 0, 0, ny), expect: 3},
		{date: "2026-05-01", now: time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC), expect: 60},
	}

	for _, test := range cases {
		days, err := DaysUntil(test.date, test.now)
		require.NoError(t, err)
		require.Equal(t, test.expect, days, test.date)
	}

	_, err = DaysUntil("March 3", time.Now())
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	original := Location
	t.Cleanup(func() { Location = original })

	require.NoError(t, Load(""))
	require.Equal(t, original, Location)

	require.NoError(t, Load("America/Chicago"))
	require.Equal(t, "America/Chicago", Location.String())
	require.Equal(t, "America/Chicago", Now().Location().String())

	require.Error(t, Load("Mars/Olympus_Mons"))
}

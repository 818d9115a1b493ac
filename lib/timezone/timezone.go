package timezone

import (
	"math"
	"time"
)

// Location is where renewal deadlines are interpreted. Deadlines are plain
// dates, so the day boundary depends on it.
var Location = time.Local

// Load replaces Location by an IANA zone name, empty keeps the current one.
func Load(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Location = loc
	return nil
}

func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysUntil counts whole days from now's date to a YYYY-MM-DD date in now's
// location, negative once the date has passed.
func DaysUntil(date string, now time.Time) (int, error) {
	day, err := time.ParseInLocation(time.DateOnly, date, now.Location())
	if err != nil {
		return 0, err
	}
	// daylight saving shifts make some days 23 or 25 hours long
	return int(math.Round(day.Sub(StartOfDay(now)).Hours() / 24)), nil
}

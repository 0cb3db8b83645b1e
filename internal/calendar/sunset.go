package calendar

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Sunset returns the UTC sunset instant for the civil day at the given
// coordinates. ok is false when the sun does not set that day.
func Sunset(day time.Time, latitude, longitude float64) (t time.Time, ok bool) {
	_, set := sunrise.SunriseSunset(latitude, longitude, day.Year(), day.Month(), day.Day())
	if set.IsZero() {
		return time.Time{}, false
	}
	return set, true
}

// Package calendar provides the day value shared by the reminder engine: an
// absolute day index with its Hebrew and Gregorian projections.
package calendar

import (
	"errors"
	"fmt"
	"time"

	// Location time zones must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

// ErrInvalidDate is returned when Hebrew date components do not name a real day.
var ErrInvalidDate = errors.New("invalid hebrew date")

// unixEpochAbs is the absolute day number of 1970-01-01.
const unixEpochAbs = 719163

const secondsPerDay = 24 * 60 * 60

// Date is one calendar day. The absolute index (0001-01-01 Gregorian = 1) is
// canonical; the Hebrew components are derived from it.
type Date struct {
	abs   int64
	year  int
	month int
	day   int
}

// FromAbs builds a Date from an absolute day number.
func FromAbs(abs int64) Date {
	y, m, d := hebrewFromAbs(abs)
	return Date{abs: abs, year: y, month: m, day: d}
}

// New validates Hebrew components and builds the Date they name.
func New(year, month, day int) (Date, error) {
	if year < 1 {
		return Date{}, fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}
	if month < 1 || month > MonthsInYear(year) {
		return Date{}, fmt.Errorf("%w: month %d in year %d", ErrInvalidDate, month, year)
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return Date{}, fmt.Errorf("%w: day %d of %s %d", ErrInvalidDate, day, MonthName(year, month), year)
	}
	return Date{abs: AbsFromHebrew(year, month, day), year: year, month: month, day: day}, nil
}

// FromGregorian builds the Date for a Gregorian civil date.
func FromGregorian(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return FromAbs(t.Unix()/secondsPerDay + unixEpochAbs)
}

// FromTime returns the Date of t's civil day in t's own location.
func FromTime(t time.Time) Date {
	return FromGregorian(t.Year(), t.Month(), t.Day())
}

func (d Date) Abs() int64 { return d.abs }
func (d Date) Year() int { return d.year }
func (d Date) Month() int { return d.month }
func (d Date) Day() int { return d.day }

// IsZero reports whether d was never set.
func (d Date) IsZero() bool { return d.abs == 0 }

// Equal compares absolute indices.
func (d Date) Equal(o Date) bool { return d.abs == o.abs }

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool { return d.abs < o.abs }

// AddDays returns the Date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return FromAbs(d.abs + int64(n))
}

// Weekday of the day. Absolute day 1 was a Monday.
func (d Date) Weekday() time.Weekday {
	w := d.abs % 7
	if w < 0 {
		w += 7
	}
	return time.Weekday(w)
}

// Gregorian returns the solar projection at UTC midnight.
func (d Date) Gregorian() time.Time {
	return time.Unix((d.abs-unixEpochAbs)*secondsPerDay, 0).UTC()
}

// IsLeapYear reports whether d falls in a Hebrew leap year.
func (d Date) IsLeapYear() bool { return IsLeapYear(d.year) }

func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.day, MonthName(d.year, d.month), d.year)
}

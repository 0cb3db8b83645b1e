// Package matcher decides whether an occasion falls on a calendar day and
// counts its anniversaries.
package matcher

import (
	"fmt"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
)

// Check reports why an occasion cannot take part in matching. Occasions that
// fail are treated as never matching.
func Check(o *domain.Occasion) error {
	if o == nil {
		return fmt.Errorf("nil occasion")
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("occasion %s: %w: %q", o.ID, domain.ErrUnknownKind, o.Kind)
	}
	if err := o.Anchor.Consistent(); err != nil {
		return fmt.Errorf("occasion %s: %w", o.ID, err)
	}
	return nil
}

// Matches reports whether o occurs on d.
func Matches(o *domain.Occasion, d calendar.Date) bool {
	if Check(o) != nil {
		return false
	}
	a := o.Anchor
	y, m, day := hebrew(a)

	if o.Kind == domain.KindOneTime {
		if a.AbsDay != 0 {
			return d.Abs() == a.AbsDay
		}
		return d.Year() == y && d.Month() == m && d.Day() == day
	}

	// A recurrence never precedes its first occurrence.
	if d.Abs() < a.Abs() {
		return false
	}

	switch o.Kind {
	case domain.KindHebrewYearly:
		return d.Day() == day && MonthsAlign(m, y, d.Month(), d.Year())
	case domain.KindHebrewMonthly:
		return d.Day() == day
	case domain.KindSecularYearly:
		s, g := a.SolarDate(), d.Gregorian()
		return s.Month() == g.Month() && s.Day() == g.Day()
	case domain.KindSecularMonthly:
		return a.SolarDate().Day() == d.Gregorian().Day()
	}
	return false
}

// MonthsAlign compares an anchor month with a target month across leap and
// common years. When both are Adar-or-later and exactly one year is leap, an
// Adar anchored in a leap year lands on Adar of a common year, and an Adar of
// a common year lands on Adar II of a leap year.
func MonthsAlign(anchorMonth, anchorYear, month, year int) bool {
	if month >= calendar.Adar && anchorMonth >= calendar.Adar {
		anchorLeap := calendar.IsLeapYear(anchorYear)
		targetLeap := calendar.IsLeapYear(year)
		if anchorLeap != targetLeap {
			return (anchorLeap && month == calendar.Adar) ||
				(targetLeap && anchorMonth == calendar.Adar && month == calendar.AdarII)
		}
	}
	return anchorMonth == month
}

// Anniversary counts elapsed years or months from the anchor to d. Callers
// display it only when positive.
func Anniversary(o *domain.Occasion, d calendar.Date) int {
	a := o.Anchor
	switch o.Kind {
	case domain.KindHebrewYearly:
		y, _, _ := hebrew(a)
		return d.Year() - y
	case domain.KindHebrewMonthly:
		y, m, _ := hebrew(a)
		return calendar.MonthsBetween(y, m, d.Year(), d.Month())
	case domain.KindSecularYearly:
		return d.Gregorian().Year() - a.SolarDate().Year()
	case domain.KindSecularMonthly:
		s, g := a.SolarDate(), d.Gregorian()
		return (g.Year()-s.Year())*12 + int(g.Month()) - int(s.Month())
	}
	return 0
}

// Ordinal returns the English ordinal suffix for n.
func Ordinal(n int) string {
	if v := n % 100; v >= 11 && v <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func hebrew(a domain.Anchor) (year, month, day int) {
	if a.Year != 0 {
		return a.Year, a.Month, a.Day
	}
	d := a.Date()
	return d.Year(), d.Month(), d.Day()
}

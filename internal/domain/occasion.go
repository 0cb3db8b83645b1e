package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/luach/internal/calendar"
)

var (
	ErrUnknownKind      = errors.New("unknown occasion kind")
	ErrAnchorMismatch   = errors.New("occasion anchor representations disagree")
	ErrAnchorIncomplete = errors.New("occasion anchor is incomplete")
)

// OccasionKind is the recurrence rule of an occasion.
type OccasionKind string

const (
	KindOneTime        OccasionKind = "one-time"
	KindHebrewYearly   OccasionKind = "hebrew-yearly"
	KindHebrewMonthly  OccasionKind = "hebrew-monthly"
	KindSecularYearly  OccasionKind = "secular-yearly"
	KindSecularMonthly OccasionKind = "secular-monthly"
)

// legacyKinds maps the integer tags older clients persisted (enum order).
var legacyKinds = map[string]OccasionKind{
	"0": KindOneTime,
	"1": KindHebrewYearly,
	"2": KindHebrewMonthly,
	"3": KindSecularYearly,
	"4": KindSecularMonthly,
}

// ParseOccasionKind normalizes a stored kind tag. Unrecognized values are
// reported as ErrUnknownKind rather than guessed.
func ParseOccasionKind(raw string) (OccasionKind, error) {
	v := strings.TrimSpace(raw)
	if k := OccasionKind(v); k.Valid() {
		return k, nil
	}
	if k, ok := legacyKinds[v]; ok {
		return k, nil
	}
	return OccasionKind(v), fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Valid reports whether k is one of the five known kinds.
func (k OccasionKind) Valid() bool {
	switch k {
	case KindOneTime, KindHebrewYearly, KindHebrewMonthly, KindSecularYearly, KindSecularMonthly:
		return true
	}
	return false
}

// Yearly reports whether anniversaries are counted in years.
func (k OccasionKind) Yearly() bool {
	return k == KindHebrewYearly || k == KindSecularYearly
}

// Anchor is the original occurrence of an occasion, stored three ways. AbsDay
// is canonical; it is zero for records created before it existed.
type Anchor struct {
	AbsDay int64
	Year   int
	Month  int
	Day    int
	Solar  time.Time // UTC midnight of the Gregorian day
}

// AnchorFromDate builds a mutually consistent anchor.
func AnchorFromDate(d calendar.Date) Anchor {
	return Anchor{
		AbsDay: d.Abs(),
		Year:   d.Year(),
		Month:  d.Month(),
		Day:    d.Day(),
		Solar:  d.Gregorian(),
	}
}

// Abs returns the absolute day, deriving it from the Hebrew components for
// legacy anchors.
func (a Anchor) Abs() int64 {
	if a.AbsDay != 0 {
		return a.AbsDay
	}
	return calendar.AbsFromHebrew(a.Year, a.Month, a.Day)
}

// Consistent checks that the three representations name the same day.
func (a Anchor) Consistent() error {
	if a.AbsDay == 0 && a.Year == 0 {
		return ErrAnchorIncomplete
	}
	if a.Year != 0 {
		d, err := calendar.New(a.Year, a.Month, a.Day)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAnchorMismatch, err)
		}
		if a.AbsDay != 0 && d.Abs() != a.AbsDay {
			return fmt.Errorf("%w: abs %d vs %s", ErrAnchorMismatch, a.AbsDay, d)
		}
	}
	if !a.Solar.IsZero() {
		want := calendar.FromAbs(a.Abs()).Gregorian()
		y, m, d := a.Solar.Date()
		if y != want.Year() || m != want.Month() || d != want.Day() {
			return fmt.Errorf("%w: solar %s vs %s", ErrAnchorMismatch, a.Solar.Format("2006-01-02"), want.Format("2006-01-02"))
		}
	}
	return nil
}

// Date returns the anchor as a calendar day.
func (a Anchor) Date() calendar.Date {
	return calendar.FromAbs(a.Abs())
}

// SolarDate returns the Gregorian projection, falling back to the one derived
// from the absolute day when none was stored.
func (a Anchor) SolarDate() time.Time {
	if !a.Solar.IsZero() {
		return a.Solar
	}
	return a.Date().Gregorian()
}

// Occasion is a user-defined reminder anchor.
type Occasion struct {
	ID              string
	UserID          int64
	Name            string
	Notes           string
	Kind            OccasionKind
	Anchor          Anchor
	RemindDayOf     bool
	RemindDayBefore bool
	BackColor       string // presentation only
	TextColor       string // presentation only
	CreatedAt       time.Time
}

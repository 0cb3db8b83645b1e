package matcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
)

func hdate(t *testing.T, y, m, d int) calendar.Date {
	t.Helper()
	date, err := calendar.New(y, m, d)
	require.NoError(t, err)
	return date
}

func occasion(kind domain.OccasionKind, anchor calendar.Date) *domain.Occasion {
	return &domain.Occasion{ID: "occ", Name: "test", Kind: kind, Anchor: domain.AnchorFromDate(anchor)}
}

func TestOneTimeMatchesOnlyItsDay(t *testing.T) {
	anchor := hdate(t, 5784, calendar.Kislev, 25)
	o := occasion(domain.KindOneTime, anchor)

	for i := -400; i <= 400; i++ {
		d := anchor.AddDays(i)
		assert.Equal(t, d.Abs() == anchor.Abs(), Matches(o, d), d.String())
	}
	assert.Equal(t, 0, Anniversary(o, anchor.AddDays(365)))
}

func TestOneTimeLegacyAnchorWithoutAbs(t *testing.T) {
	o := &domain.Occasion{ID: "legacy", Kind: domain.KindOneTime,
		Anchor: domain.Anchor{Year: 5784, Month: calendar.Kislev, Day: 25}}

	assert.True(t, Matches(o, hdate(t, 5784, calendar.Kislev, 25)))
	assert.False(t, Matches(o, hdate(t, 5785, calendar.Kislev, 25)))
}

func TestHebrewYearlyAnniversaryIsMonotonic(t *testing.T) {
	o := occasion(domain.KindHebrewYearly, hdate(t, 5770, calendar.Tishrei, 1))

	prev := -1
	for y := 5770; y <= 5800; y++ {
		d := hdate(t, y, calendar.Tishrei, 1)
		require.True(t, Matches(o, d), d.String())
		n := Anniversary(o, d)
		assert.Equal(t, y-5770, n)
		assert.Greater(t, n, prev)
		prev = n
	}

	assert.False(t, Matches(o, hdate(t, 5769, calendar.Tishrei, 1)), "no recurrence before the anchor")
	assert.False(t, Matches(o, hdate(t, 5785, calendar.Tishrei, 2)))
	assert.Equal(t, 15, Anniversary(o, hdate(t, 5785, calendar.Tishrei, 1)))
}

func TestLeapMonthAlignment(t *testing.T) {
	require.False(t, calendar.IsLeapYear(5783))
	require.True(t, calendar.IsLeapYear(5784))
	require.False(t, calendar.IsLeapYear(5785))
	require.True(t, calendar.IsLeapYear(5787))

	cases := []struct {
		anchor calendar.Date
		target calendar.Date
		want   bool
	}{
		// Common-year Adar lands on Adar II of a leap year, not Adar I.
		{hdate(t, 5783, calendar.Adar, 15), hdate(t, 5784, calendar.AdarII, 15), true},
		{hdate(t, 5783, calendar.Adar, 15), hdate(t, 5784, calendar.Adar, 15), false},
		// Leap-year Adar I and Adar II both land on Adar of a common year.
		{hdate(t, 5784, calendar.Adar, 15), hdate(t, 5785, calendar.Adar, 15), true},
		{hdate(t, 5784, calendar.AdarII, 15), hdate(t, 5785, calendar.Adar, 15), true},
		// Same leap-ness requires the exact month.
		{hdate(t, 5784, calendar.AdarII, 15), hdate(t, 5787, calendar.AdarII, 15), true},
		{hdate(t, 5784, calendar.AdarII, 15), hdate(t, 5787, calendar.Adar, 15), false},
		{hdate(t, 5784, calendar.Adar, 15), hdate(t, 5787, calendar.Adar, 15), true},
		{hdate(t, 5783, calendar.Adar, 15), hdate(t, 5785, calendar.Adar, 15), true},
		// Months before Adar are never corrected.
		{hdate(t, 5783, calendar.Shevat, 15), hdate(t, 5784, calendar.Shevat, 15), true},
	}
	for _, tc := range cases {
		name := fmt.Sprintf("%s -> %s", tc.anchor, tc.target)
		o := occasion(domain.KindHebrewYearly, tc.anchor)
		assert.Equal(t, tc.want, Matches(o, tc.target), name)
	}
}

func TestHebrewMonthly(t *testing.T) {
	o := occasion(domain.KindHebrewMonthly, hdate(t, 5783, calendar.Sivan, 10))

	target := hdate(t, 5784, calendar.Sivan, 10)
	require.True(t, Matches(o, target))
	// 5784 is leap: its Adar II sits between the two Sivans.
	assert.Equal(t, 13, Anniversary(o, target))
	assert.NotEqual(t, 12, Anniversary(o, target))

	assert.True(t, Matches(o, hdate(t, 5784, calendar.AdarII, 10)))
	assert.True(t, Matches(o, hdate(t, 5783, calendar.Tammuz, 10)))
	assert.Equal(t, 1, Anniversary(o, hdate(t, 5783, calendar.Tammuz, 10)))
	assert.False(t, Matches(o, hdate(t, 5783, calendar.Iyar, 10)))
	assert.False(t, Matches(o, hdate(t, 5783, calendar.Tammuz, 11)))
}

func TestSecularYearly(t *testing.T) {
	o := occasion(domain.KindSecularYearly, calendar.FromGregorian(2000, time.March, 15))

	d := calendar.FromGregorian(2024, time.March, 15)
	assert.True(t, Matches(o, d))
	assert.Equal(t, 24, Anniversary(o, d))
	assert.False(t, Matches(o, calendar.FromGregorian(2024, time.March, 16)))
	assert.False(t, Matches(o, calendar.FromGregorian(1999, time.March, 15)))
}

func TestSecularMonthly(t *testing.T) {
	o := occasion(domain.KindSecularMonthly, calendar.FromGregorian(2024, time.January, 31))

	d := calendar.FromGregorian(2024, time.March, 31)
	assert.True(t, Matches(o, d))
	assert.Equal(t, 2, Anniversary(o, d))
	assert.Equal(t, 13, Anniversary(o, calendar.FromGregorian(2025, time.February, 28)))
	assert.False(t, Matches(o, calendar.FromGregorian(2024, time.February, 29)))
}

func TestMalformedOccasionsFailClosed(t *testing.T) {
	anchor := hdate(t, 5784, calendar.Kislev, 25)

	unknown := occasion("birthday", anchor)
	assert.Error(t, Check(unknown))
	assert.False(t, Matches(unknown, anchor))

	mismatched := occasion(domain.KindHebrewYearly, anchor)
	mismatched.Anchor.Day = 24
	assert.Error(t, Check(mismatched))
	assert.False(t, Matches(mismatched, anchor))
	assert.False(t, Matches(mismatched, anchor.AddDays(-1)))
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{
		1: "st", 2: "nd", 3: "rd", 4: "th", 11: "th", 12: "th", 13: "th",
		15: "th", 21: "st", 22: "nd", 23: "rd", 101: "st", 111: "th", 112: "th",
	} {
		assert.Equal(t, want, Ordinal(n), n)
	}
}

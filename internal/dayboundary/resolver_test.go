package dayboundary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
)

func jerusalem(t *testing.T) (domain.Location, *time.Location) {
	t.Helper()
	loc, ok := domain.FindLocation("Jerusalem")
	require.True(t, ok)
	return loc, loc.Zone()
}

func TestSunsetPolicyAdvancesAfterSunset(t *testing.T) {
	loc, zone := jerusalem(t)
	set, ok := Sunset(time.Date(2024, time.October, 2, 12, 0, 0, 0, zone), loc)
	require.True(t, ok)

	now := set.Add(2 * time.Minute)
	r := New(zone, WithClock(func() time.Time { return now }))

	midnight := r.Today(domain.BoundaryMidnight, loc)
	sunset := r.Today(domain.BoundarySunset, loc)

	assert.Equal(t, "2024-10-02", midnight.Gregorian().Format("2006-01-02"))
	assert.Equal(t, midnight.AddDays(1), sunset)
	// Erev Rosh Hashana: the evening already belongs to 1 Tishrei 5785.
	assert.Equal(t, 5785, sunset.Year())
	assert.Equal(t, calendar.Tishrei, sunset.Month())
	assert.Equal(t, 1, sunset.Day())
}

func TestSunsetPolicyDivergesUntilMidnight(t *testing.T) {
	loc, zone := jerusalem(t)
	fixedSunset := func(day time.Time, _ domain.Location) (time.Time, bool) {
		return time.Date(day.Year(), day.Month(), day.Day(), 17, 45, 0, 0, zone), true
	}
	r := New(zone, WithSunset(fixedSunset))

	before := time.Date(2024, time.October, 2, 17, 44, 0, 0, zone)
	assert.Equal(t, r.At(before, domain.BoundaryMidnight, loc), r.At(before, domain.BoundarySunset, loc))

	for _, hm := range [][2]int{{17, 47}, {20, 0}, {23, 59}} {
		now := time.Date(2024, time.October, 2, hm[0], hm[1], 0, 0, zone)
		mid := r.At(now, domain.BoundaryMidnight, loc)
		sun := r.At(now, domain.BoundarySunset, loc)
		assert.Equal(t, mid.AddDays(1), sun, now.String())
	}

	after := time.Date(2024, time.October, 3, 0, 1, 0, 0, zone)
	assert.Equal(t, r.At(after, domain.BoundaryMidnight, loc), r.At(after, domain.BoundarySunset, loc))
}

func TestNoSunsetKeepsCivilDay(t *testing.T) {
	loc, zone := jerusalem(t)
	r := New(zone, WithSunset(func(time.Time, domain.Location) (time.Time, bool) {
		return time.Time{}, false
	}))
	now := time.Date(2024, time.June, 21, 23, 0, 0, 0, zone)
	assert.Equal(t, calendar.FromGregorian(2024, time.June, 21), r.At(now, domain.BoundarySunset, loc))
}

func TestLocationsDisagreeAtSameInstant(t *testing.T) {
	jlm, _ := jerusalem(t)
	ny, ok := domain.FindLocation("New York")
	require.True(t, ok)

	// 15:30 UTC: after sunset in Jerusalem, late morning in New York.
	now := time.Date(2024, time.October, 2, 15, 30, 0, 0, time.UTC)
	r := New(time.UTC, WithClock(func() time.Time { return now }))

	assert.Equal(t, calendar.FromGregorian(2024, time.October, 3), r.Today(domain.BoundarySunset, jlm))
	assert.Equal(t, calendar.FromGregorian(2024, time.October, 2), r.Today(domain.BoundarySunset, ny))
}

func TestMidnightPolicyIgnoresLocation(t *testing.T) {
	ny, _ := domain.FindLocation("New York")
	jlm, _ := domain.FindLocation("Jerusalem")
	now := time.Date(2024, time.October, 2, 23, 30, 0, 0, time.UTC)
	r := New(time.UTC)

	assert.Equal(t, r.At(now, domain.BoundaryMidnight, ny), r.At(now, domain.BoundaryMidnight, jlm))
	assert.Equal(t, calendar.FromGregorian(2024, time.October, 2), r.At(now, domain.BoundaryMidnight, ny))
}

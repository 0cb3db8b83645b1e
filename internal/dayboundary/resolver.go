// Package dayboundary resolves which calendar day is "today" for a user.
package dayboundary

import (
	"time"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
)

// SunsetFunc returns the sunset instant for a civil day at a location.
type SunsetFunc func(day time.Time, loc domain.Location) (time.Time, bool)

// Resolver turns the current instant into a calendar day. The clock is read
// once per call and nothing is cached between calls.
type Resolver struct {
	now    func() time.Time
	sunset SunsetFunc
	zone   *time.Location
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithSunset replaces the astronomical sunset computation.
func WithSunset(f SunsetFunc) Option {
	return func(r *Resolver) { r.sunset = f }
}

// New creates a Resolver. zone is the zone whose midnight ends the day under
// the midnight policy; nil means time.Local.
func New(zone *time.Location, opts ...Option) *Resolver {
	if zone == nil {
		zone = time.Local
	}
	r := &Resolver{
		now:    time.Now,
		sunset: Sunset,
		zone:   zone,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sunset is the default SunsetFunc.
func Sunset(day time.Time, loc domain.Location) (time.Time, bool) {
	return calendar.Sunset(day, loc.Latitude, loc.Longitude)
}

// Today resolves the current day for a policy and location.
func (r *Resolver) Today(policy domain.DayBoundaryPolicy, loc domain.Location) calendar.Date {
	return r.At(r.now(), policy, loc)
}

// At resolves the day in progress at instant now.
func (r *Resolver) At(now time.Time, policy domain.DayBoundaryPolicy, loc domain.Location) calendar.Date {
	if policy == domain.BoundaryMidnight {
		return calendar.FromTime(now.In(r.zone))
	}

	local := now.In(loc.Zone())
	today := calendar.FromTime(local)
	set, ok := r.sunset(local, loc)
	if ok && !now.Before(set) {
		return today.AddDays(1)
	}
	return today
}

// Now exposes the resolver clock.
func (r *Resolver) Now() time.Time {
	return r.now()
}

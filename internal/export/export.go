// Package export renders occasions as iCalendar data.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/matcher"
)

const (
	ProductID  = "-//Luach//Occasions//EN"
	dateLayout = "20060102"
)

// Options bounds the expansion of Hebrew recurrences, which RRULE cannot
// express. Secular recurrences are open-ended RRULEs.
type Options struct {
	From  calendar.Date
	Years int
	Stamp time.Time
}

func (o Options) horizon() calendar.Date {
	years := o.Years
	if years <= 0 {
		years = 10
	}
	return o.From.AddDays(years * 366)
}

// UID is the iCalendar UID of an occasion.
func UID(o *domain.Occasion) string {
	return o.ID + "@luach"
}

// RRule returns the recurrence of a secular occasion.
func RRule(o *domain.Occasion) (*rrule.ROption, bool) {
	switch o.Kind {
	case domain.KindSecularYearly:
		return &rrule.ROption{Freq: rrule.YEARLY}, true
	case domain.KindSecularMonthly:
		return &rrule.ROption{Freq: rrule.MONTHLY}, true
	}
	return nil, false
}

// Event renders one occasion as a single all-day VEVENT. Hebrew recurrences
// become an RDATE list over the horizon. It returns nil for malformed
// occasions and for Hebrew recurrences with no date in range.
func Event(o *domain.Occasion, opts Options) *ical.Event {
	if matcher.Check(o) != nil {
		return nil
	}
	start := o.Anchor.SolarDate()

	var rdates []string
	if o.Kind == domain.KindHebrewYearly || o.Kind == domain.KindHebrewMonthly {
		dates := occurrences(o, opts.From, opts.horizon())
		if len(dates) == 0 {
			return nil
		}
		start = dates[0].Gregorian()
		for _, d := range dates[1:] {
			rdates = append(rdates, d.Gregorian().Format(dateLayout))
		}
	}

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, UID(o))
	ev.Props.SetText(ical.PropSummary, o.Name)
	if o.Notes != "" {
		ev.Props.SetText(ical.PropDescription, o.Notes)
	}
	ev.Props.SetDate(ical.PropDateTimeStart, start)
	ev.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, opts.Stamp.UTC())

	if rule, ok := RRule(o); ok {
		ev.Props.SetRecurrenceRule(rule)
	}
	if len(rdates) > 0 {
		prop := ical.NewProp(ical.PropRecurrenceDates)
		prop.Params.Set(ical.ParamValue, string(ical.ValueDate))
		prop.Value = strings.Join(rdates, ",")
		ev.Props.Set(prop)
	}
	return ev
}

// occurrences lists the days in [from, to) on which o falls.
func occurrences(o *domain.Occasion, from, to calendar.Date) []calendar.Date {
	if a := o.Anchor.Date(); from.Before(a) {
		from = a
	}
	var out []calendar.Date
	for d := from; d.Before(to); d = d.AddDays(1) {
		if matcher.Matches(o, d) {
			out = append(out, d)
		}
	}
	return out
}

// Calendar builds a VCALENDAR holding one event per exportable occasion.
func Calendar(occasions []*domain.Occasion, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	for _, o := range occasions {
		if ev := Event(o, opts); ev != nil {
			cal.Children = append(cal.Children, ev.Component)
		}
	}
	return cal
}

func Write(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
)

var stamp = time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)

func hebrew(t *testing.T, y, m, d int) calendar.Date {
	t.Helper()
	date, err := calendar.New(y, m, d)
	require.NoError(t, err)
	return date
}

func TestHebrewYearlyExpandsToDates(t *testing.T) {
	o := &domain.Occasion{ID: "w", Name: "Wedding", Kind: domain.KindHebrewYearly,
		Anchor: domain.AnchorFromDate(hebrew(t, 5770, calendar.Tishrei, 1))}
	from := calendar.FromGregorian(2024, time.September, 1)

	ev := Event(o, Options{From: from, Years: 3, Stamp: stamp})
	require.NotNil(t, ev)

	start, err := ev.DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-10-03", start.Format("2006-01-02"))

	rdate := ev.Props.Get(ical.PropRecurrenceDates)
	require.NotNil(t, rdate)
	assert.Equal(t, "20250923,20260912", rdate.Value)
	assert.Nil(t, ev.Props.Get(ical.PropRecurrenceRule))
}

func TestSecularYearlyUsesRRule(t *testing.T) {
	o := &domain.Occasion{ID: "b", Name: "Leap birthday", Kind: domain.KindSecularYearly,
		Anchor: domain.AnchorFromDate(calendar.FromGregorian(2000, time.February, 29))}

	ev := Event(o, Options{From: calendar.FromGregorian(2024, time.January, 1), Stamp: stamp})
	require.NotNil(t, ev)

	opt, err := ev.Props.RecurrenceRule()
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, rrule.YEARLY, opt.Freq)

	start, err := ev.DateTimeStart(time.UTC)
	require.NoError(t, err)
	opt.Dtstart = start
	rule, err := rrule.NewRRule(*opt)
	require.NoError(t, err)

	got := rule.Between(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), true)
	require.Len(t, got, 2)
	assert.Equal(t, 2004, got[0].Year())
	assert.Equal(t, 2008, got[1].Year())
}

func TestCalendarRoundTrip(t *testing.T) {
	occasions := []*domain.Occasion{
		{ID: "one", Name: "Bris", Notes: "Shul, 9am", Kind: domain.KindOneTime,
			Anchor: domain.AnchorFromDate(hebrew(t, 5784, calendar.Kislev, 25))},
		{ID: "rent", Name: "Rent", Kind: domain.KindSecularMonthly,
			Anchor: domain.AnchorFromDate(calendar.FromGregorian(2024, time.January, 1))},
		{ID: "bad", Name: "Broken", Kind: "weekly",
			Anchor: domain.AnchorFromDate(calendar.FromGregorian(2024, time.January, 1))},
	}

	cal := Calendar(occasions, Options{From: calendar.FromGregorian(2024, time.January, 1), Years: 1, Stamp: stamp})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cal))
	assert.True(t, strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR"))

	decoded, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)

	events := decoded.Events()
	require.Len(t, events, 2)
	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "one@luach", uid)
	notes, err := events[0].Props.Text(ical.PropDescription)
	require.NoError(t, err)
	assert.Equal(t, "Shul, 9am", notes)
}

func TestOneTimeOutsideHorizonStillExported(t *testing.T) {
	o := &domain.Occasion{ID: "old", Name: "Old", Kind: domain.KindOneTime,
		Anchor: domain.AnchorFromDate(hebrew(t, 5700, calendar.Nisan, 1))}
	assert.NotNil(t, Event(o, Options{From: calendar.FromGregorian(2024, time.January, 1), Stamp: stamp}))
}

package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/dayboundary"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/ledger"
	"github.com/tazhate/luach/internal/metrics"
	"github.com/tazhate/luach/internal/service"
	"github.com/tazhate/luach/pkg/logger"
)

type fakeNotifier struct {
	perm   Permission
	asked  int
	titles []string
	fail   map[string]error // by title
}

func (f *fakeNotifier) RequestPermission(context.Context) (Permission, error) {
	f.asked++
	return f.perm, nil
}

func (f *fakeNotifier) Show(_ context.Context, title, _ string) error {
	if err := f.fail[title]; err != nil {
		return err
	}
	f.titles = append(f.titles, title)
	return nil
}

var midnightUTC = &domain.ReminderSettings{LocationName: "Jerusalem", DayBoundary: domain.BoundaryMidnight}

func occasions(t *testing.T) []*domain.Occasion {
	t.Helper()
	wedding, err := calendar.New(5770, calendar.Tishrei, 1)
	require.NoError(t, err)
	fast, err := calendar.New(5770, calendar.Tishrei, 3)
	require.NoError(t, err)
	return []*domain.Occasion{
		{ID: "w", Name: "Wedding", Kind: domain.KindHebrewYearly, Anchor: domain.AnchorFromDate(wedding), RemindDayOf: true},
		{ID: "g", Name: "Tzom Gedalia", Kind: domain.KindHebrewYearly, Anchor: domain.AnchorFromDate(fast), RemindDayBefore: true},
	}
}

func newReminder(n Notifier, kv ledger.KV, now time.Time) *Reminder {
	log := logger.Discard()
	resolver := dayboundary.New(time.UTC, dayboundary.WithClock(func() time.Time { return now }))
	return NewReminder(resolver, service.NewReminderService(log), ledger.NewDedupStore(kv), n, metrics.New(), log)
}

func TestCheckNotifiesOncePerDay(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemory()
	n := &fakeNotifier{perm: PermissionGranted}
	// 2 Tishrei 5785: the wedding was yesterday, the fast (3 Tishrei) is tomorrow.
	r := newReminder(n, kv, time.Date(2024, time.October, 4, 9, 0, 0, 0, time.UTC))

	rep, err := r.Check(ctx, occasions(t), midnightUTC)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Shown)
	assert.Equal(t, []string{"Tomorrow: Tzom Gedalia (15th anniversary)"}, n.titles)

	rep, err = r.Check(ctx, occasions(t), midnightUTC)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Shown)
	assert.Len(t, n.titles, 1)
	assert.Equal(t, 1, n.asked, "permission is requested once")

	// A fresh install shares nothing with the first one.
	n2 := &fakeNotifier{perm: PermissionGranted}
	rep, err = newReminder(n2, ledger.NewMemory(), time.Date(2024, time.October, 4, 9, 0, 0, 0, time.UTC)).Check(ctx, occasions(t), midnightUTC)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Shown)
}

func TestCheckContinuesPastFailedNotification(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemory()
	errBusy := errors.New("notification center busy")
	n := &fakeNotifier{perm: PermissionGranted, fail: map[string]error{"Today: Wedding (15th anniversary)": errBusy}}
	// 1 Tishrei 5785: the wedding is today and the bris tomorrow.
	occs := occasions(t)
	next, err := calendar.New(5770, calendar.Tishrei, 2)
	require.NoError(t, err)
	occs = append(occs, &domain.Occasion{ID: "b", Name: "Bris", Kind: domain.KindHebrewYearly,
		Anchor: domain.AnchorFromDate(next), RemindDayBefore: true})
	r := newReminder(n, kv, time.Date(2024, time.October, 3, 9, 0, 0, 0, time.UTC))

	rep, err := r.Check(ctx, occs, midnightUTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, rep.Shown)
	assert.Equal(t, []string{"Tomorrow: Bris (15th anniversary)"}, n.titles)

	// The failed one is retried; the shown one is not repeated.
	n.fail = nil
	rep, err = r.Check(ctx, occs, midnightUTC)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Shown)
	assert.Equal(t, []string{"Tomorrow: Bris (15th anniversary)", "Today: Wedding (15th anniversary)"}, n.titles)
}

func TestCheckWithoutPermission(t *testing.T) {
	ctx := context.Background()
	n := &fakeNotifier{perm: PermissionDenied}
	r := newReminder(n, ledger.NewMemory(), time.Date(2024, time.October, 3, 9, 0, 0, 0, time.UTC))

	rep, err := r.Check(ctx, occasions(t), midnightUTC)
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, rep.Permission)
	assert.Len(t, rep.Due.TodayMatches, 1)
	assert.Empty(t, n.titles)

	visible, err := NewBanner(ledger.NewMemory(), nil, time.UTC).Visible(ctx, rep)
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestBannerResetsOnNextSolarDay(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemory()
	now := time.Date(2024, time.October, 3, 9, 0, 0, 0, time.UTC)
	b := NewBanner(kv, func() time.Time { return now }, time.UTC)

	d := calendar.FromTime(now)
	rep := Report{Permission: PermissionGranted, Due: service.Due{Today: d,
		TodayMatches: []service.Match{{Occasion: occasions(t)[0], Date: d}}}}

	visible, err := b.Visible(ctx, rep)
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, b.Dismiss(ctx))
	visible, err = b.Visible(ctx, rep)
	require.NoError(t, err)
	assert.False(t, visible)

	now = now.Add(24 * time.Hour)
	visible, err = b.Visible(ctx, rep)
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestTerminalNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := TerminalNotifier{W: &buf}
	require.NoError(t, n.Show(context.Background(), "Today: Wedding", "flowers"))
	require.NoError(t, n.Show(context.Background(), "Tomorrow: Fast", ""))
	assert.Equal(t, "* Today: Wedding\n  flowers\n* Tomorrow: Fast\n", buf.String())
}

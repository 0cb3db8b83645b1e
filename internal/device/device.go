// Package device runs the on-device reminder path: local notifications
// deduplicated through the installation ledger, plus the daily banner.
package device

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/luach/internal/dayboundary"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/ledger"
	"github.com/tazhate/luach/internal/metrics"
	"github.com/tazhate/luach/internal/service"
)

// Permission is the state of the system notification permission.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

type Notifier interface {
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, title, body string) error
}

// Report is the outcome of one Check.
type Report struct {
	Due        service.Due
	Permission Permission
	Shown      int
}

type Reminder struct {
	resolver   *dayboundary.Resolver
	reminders  *service.ReminderService
	dedup      *ledger.DedupStore
	notifier   Notifier
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	permission Permission
}

func NewReminder(resolver *dayboundary.Resolver, reminders *service.ReminderService, dedup *ledger.DedupStore,
	notifier Notifier, m *metrics.Metrics, log logrus.FieldLogger) *Reminder {
	return &Reminder{
		resolver:  resolver,
		reminders: reminders,
		dedup:     dedup,
		notifier:  notifier,
		metrics:   m,
		log:       log,
	}
}

// Check resolves today under the user's settings and shows a notification for
// every due occasion not yet notified on this installation. Nil settings mean
// the default location with the sunset boundary.
func (r *Reminder) Check(ctx context.Context, occasions []*domain.Occasion, settings *domain.ReminderSettings) (Report, error) {
	policy, loc := domain.BoundarySunset, domain.LocationOrDefault("")
	if settings != nil {
		policy, loc = settings.DayBoundary, settings.Location()
	}

	rep := Report{Due: r.reminders.Due(occasions, r.resolver.Today(policy, loc))}
	if rep.Due.Empty() {
		rep.Permission = r.permission
		return rep, nil
	}

	perm, err := r.requestPermission(ctx)
	if err != nil {
		return rep, fmt.Errorf("request notification permission: %w", err)
	}
	rep.Permission = perm
	if perm != PermissionGranted {
		r.log.WithField("permission", perm).Info("notifications not permitted, skipping")
		return rep, nil
	}

	var errs *multierror.Error
	notify := func(prefix string, matches []service.Match) {
		for _, m := range matches {
			abs := m.Date.Abs()
			log := r.log.WithFields(logrus.Fields{"occasion_id": m.Occasion.ID, "abs_day": abs})

			done, err := r.dedup.Delivered(ctx, m.Occasion.ID, abs, domain.ChannelLocalNotification)
			if err != nil {
				log.WithError(err).Error("read notification ledger")
				errs = multierror.Append(errs, fmt.Errorf("read ledger for %s: %w", m.Occasion.ID, err))
				continue
			}
			if done {
				continue
			}
			if err := r.notifier.Show(ctx, prefix+m.Label(), m.Occasion.Notes); err != nil {
				log.WithError(err).Error("show notification")
				errs = multierror.Append(errs, fmt.Errorf("show notification for %s: %w", m.Occasion.ID, err))
				continue
			}
			rep.Shown++
			r.metrics.NotificationsShown.Inc()
			if err := r.dedup.Record(ctx, m.Occasion.ID, abs, domain.ChannelLocalNotification); err != nil {
				log.WithError(err).Error("write notification ledger")
				errs = multierror.Append(errs, fmt.Errorf("write ledger for %s: %w", m.Occasion.ID, err))
			}
		}
	}
	notify("Today: ", rep.Due.TodayMatches)
	notify("Tomorrow: ", rep.Due.TomorrowMatches)
	return rep, errs.ErrorOrNil()
}

// requestPermission asks once; a "default" answer is asked again next time.
func (r *Reminder) requestPermission(ctx context.Context) (Permission, error) {
	if r.permission == PermissionGranted || r.permission == PermissionDenied {
		return r.permission, nil
	}
	p, err := r.notifier.RequestPermission(ctx)
	if err != nil {
		return PermissionDefault, err
	}
	r.permission = p
	return p, nil
}

// TerminalNotifier prints notifications to a writer.
type TerminalNotifier struct {
	W io.Writer
}

func (n TerminalNotifier) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (n TerminalNotifier) Show(_ context.Context, title, body string) error {
	if body = strings.TrimSpace(body); body != "" {
		_, err := fmt.Fprintf(n.W, "* %s\n  %s\n", title, body)
		return err
	}
	_, err := fmt.Fprintf(n.W, "* %s\n", title)
	return err
}

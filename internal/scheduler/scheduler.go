package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/luach/internal/dayboundary"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/metrics"
	"github.com/tazhate/luach/internal/outbox"
	"github.com/tazhate/luach/internal/service"
)

// Store is the persistence the reminder pass needs.
type Store interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
	GetReminderSettings(ctx context.Context, userID int64) (*domain.ReminderSettings, error)
	GetCheckpoint(ctx context.Context, userID int64) (*domain.Checkpoint, error)
	ListOccasions(ctx context.Context, userID int64) ([]*domain.Occasion, error)
	EnqueueMessage(ctx context.Context, m *domain.OutgoingMessage) (bool, error)
	AdvanceCheckpoint(ctx context.Context, userID, absDay int64, at time.Time) error
}

// Dispatcher drains the outbox.
type Dispatcher interface {
	Dispatch(ctx context.Context) (outbox.Stats, error)
}

type Config struct {
	ReminderSchedule string // cron spec of the reminder pass
	DispatchSchedule string // cron spec of outbox dispatch
	Workers          int
	Location         *time.Location
}

// PassResult summarizes one reminder pass.
type PassResult struct {
	Users       int
	Skipped     int
	AlreadyDone int
	Processed   int
	Enqueued    int
	Failed      int
	Err         error
}

type Scheduler struct {
	cron       *cron.Cron
	cfg        Config
	store      Store
	resolver   *dayboundary.Resolver
	reminders  *service.ReminderService
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

func New(cfg Config, store Store, resolver *dayboundary.Resolver, reminders *service.ReminderService, m *metrics.Metrics, log logrus.FieldLogger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ReminderSchedule == "" {
		cfg.ReminderSchedule = "0 * * * *"
	}
	if cfg.DispatchSchedule == "" {
		cfg.DispatchSchedule = "* * * * *"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		reminders: reminders,
		metrics:   m,
		log:       log,
	}
}

func (s *Scheduler) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ReminderSchedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("add reminder pass: %w", err)
	}

	if s.dispatcher != nil {
		if _, err := s.cron.AddFunc(s.cfg.DispatchSchedule, func() { s.dispatch(ctx) }); err != nil {
			return fmt.Errorf("add outbox dispatch: %w", err)
		}
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"tz":       s.cfg.Location.String(),
		"reminder": s.cfg.ReminderSchedule,
		"dispatch": s.cfg.DispatchSchedule,
		"workers":  s.cfg.Workers,
	}).Info("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) dispatch(ctx context.Context) {
	stats, err := s.dispatcher.Dispatch(ctx)
	if err != nil {
		s.log.WithError(err).Error("outbox dispatch failed")
		return
	}
	if stats.Sent+stats.Failed > 0 {
		s.log.WithFields(logrus.Fields{"sent": stats.Sent, "failed": stats.Failed}).Info("outbox dispatched")
	}
}

// RunOnce performs a reminder pass over every user. Per-user failures are
// logged and collected in PassResult.Err; they never stop the pass.
func (s *Scheduler) RunOnce(ctx context.Context) PassResult {
	start := time.Now()
	s.metrics.Passes.Inc()
	defer func() { s.metrics.PassDuration.Observe(time.Since(start).Seconds()) }()

	var res PassResult
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		res.Err = fmt.Errorf("list users: %w", err)
		s.log.WithError(err).Error("reminder pass aborted")
		return res
	}
	res.Users = len(users)

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, u := range users {
		g.Go(func() error {
			outcome, enqueued, err := s.processUser(ctx, u)
			s.metrics.Users.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.OutcomeSkipped:
				res.Skipped++
			case metrics.OutcomeAlreadyDone:
				res.AlreadyDone++
			case metrics.OutcomeProcessed:
				res.Processed++
			case metrics.OutcomeFailed:
				res.Failed++
				errs = multierror.Append(errs, fmt.Errorf("user %d: %w", u.ID, err))
			}
			if enqueued {
				res.Enqueued++
			}
			return nil
		})
	}
	_ = g.Wait()
	res.Err = errs.ErrorOrNil()

	s.log.WithFields(logrus.Fields{
		"users":        res.Users,
		"skipped":      res.Skipped,
		"already_done": res.AlreadyDone,
		"processed":    res.Processed,
		"enqueued":     res.Enqueued,
		"failed":       res.Failed,
	}).Info("reminder pass finished")
	return res
}

// processUser runs the pass for one user. The checkpoint is written last, so
// any earlier failure leaves the day to be retried by the next pass.
func (s *Scheduler) processUser(ctx context.Context, u *domain.User) (outcome string, enqueued bool, err error) {
	log := s.log.WithField("user_id", u.ID)
	fail := func(step string, err error) (string, bool, error) {
		err = fmt.Errorf("%s: %w", step, err)
		log.WithError(err).Error("reminder pass failed for user")
		return metrics.OutcomeFailed, enqueued, err
	}

	settings, err := s.store.GetReminderSettings(ctx, u.ID)
	if err != nil {
		return fail("load settings", err)
	}
	if !settings.Deliverable() {
		log.Info("reminders not configured, skipping")
		return metrics.OutcomeSkipped, false, nil
	}

	today := s.resolver.Today(settings.DayBoundary, settings.Location())
	log = log.WithField("abs_day", today.Abs())

	cp, err := s.store.GetCheckpoint(ctx, u.ID)
	if err != nil {
		return fail("load checkpoint", err)
	}
	if cp.Handled(today.Abs()) {
		log.Debug("day already processed")
		return metrics.OutcomeAlreadyDone, false, nil
	}

	occasions, err := s.store.ListOccasions(ctx, u.ID)
	if err != nil {
		return fail("load occasions", err)
	}

	due := s.reminders.Due(occasions, today)
	if msg := s.reminders.RenderDigest(u.ID, settings.Recipient, due); msg != nil {
		created, err := s.store.EnqueueMessage(ctx, msg)
		if err != nil {
			return fail("enqueue digest", err)
		}
		if created {
			enqueued = true
			s.metrics.DigestsEnqueued.Inc()
			log.WithField("message_id", msg.ID).Info("digest enqueued")
		}
	}

	if err := s.store.AdvanceCheckpoint(ctx, u.ID, today.Abs(), s.resolver.Now()); err != nil {
		return fail("advance checkpoint", err)
	}
	return metrics.OutcomeProcessed, enqueued, nil
}

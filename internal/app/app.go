// Package app wires the storage, scheduler and delivery components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/luach/config"
	"github.com/tazhate/luach/internal/api"
	"github.com/tazhate/luach/internal/bot"
	"github.com/tazhate/luach/internal/clients/caldav"
	"github.com/tazhate/luach/internal/dayboundary"
	"github.com/tazhate/luach/internal/device"
	"github.com/tazhate/luach/internal/ledger"
	"github.com/tazhate/luach/internal/metrics"
	"github.com/tazhate/luach/internal/outbox"
	"github.com/tazhate/luach/internal/scheduler"
	"github.com/tazhate/luach/internal/service"
	"github.com/tazhate/luach/internal/storage"
)

type App struct {
	Config     *config.Config
	Log        *logrus.Logger
	Storage    *storage.Storage
	Ledger     *ledger.SQLite
	Metrics    *metrics.Metrics
	Resolver   *dayboundary.Resolver
	Reminders  *service.ReminderService
	Occasions  *service.OccasionService
	Scheduler  *scheduler.Scheduler
	Dispatcher *outbox.Dispatcher
	CalDAV     *caldav.Client
	Bot        *bot.Bot
}

// New opens the databases and builds every component. The Telegram bot is
// created only when a token is configured.
func New(cfg *config.Config, log *logrus.Logger) (*App, error) {
	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	kv, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		Storage:   store,
		Ledger:    kv,
		Metrics:   metrics.New(),
		Resolver:  dayboundary.New(cfg.Location()),
		Reminders: service.NewReminderService(log),
		Occasions: service.NewOccasionService(store),
	}

	a.Scheduler = scheduler.New(scheduler.Config{
		ReminderSchedule: cfg.ReminderSchedule,
		DispatchSchedule: cfg.DispatchSchedule,
		Workers:          cfg.Workers,
		Location:         cfg.Location(),
	}, store, a.Resolver, a.Reminders, a.Metrics, log)

	a.Dispatcher = outbox.NewDispatcher(store, a.Metrics, log)
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Bot = b
		a.Dispatcher.Register(b)
	}
	a.Scheduler.SetDispatcher(a.Dispatcher)

	if cfg.CalDAV.Enabled() {
		a.CalDAV = caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
		a.CalDAV.SetCalendarID(cfg.CalDAV.Calendar)
	}

	return a, nil
}

func (a *App) Close() {
	if err := a.Ledger.Close(); err != nil {
		a.Log.WithError(err).Warn("close ledger")
	}
	if err := a.Storage.Close(); err != nil {
		a.Log.WithError(err).Warn("close storage")
	}
}

// DeviceReminder builds the on-device reminder path for a notifier.
func (a *App) DeviceReminder(n device.Notifier) *device.Reminder {
	return device.NewReminder(a.Resolver, a.Reminders, ledger.NewDedupStore(a.Ledger), n, a.Metrics, a.Log)
}

// TerminalReminder is DeviceReminder writing notifications to w.
func (a *App) TerminalReminder(w io.Writer) *device.Reminder {
	return a.DeviceReminder(device.TerminalNotifier{W: w})
}

func (a *App) Banner() *device.Banner {
	return device.NewBanner(a.Ledger, time.Now, a.Config.Location())
}

func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Occasions:   a.Occasions,
		Reminders:   a.Reminders,
		Settings:    a.Storage,
		Resolver:    a.Resolver,
		Runner:      a.Scheduler,
		Metrics:     a.Metrics,
		Log:         a.Log,
		APIUsername: a.Config.API.Username,
		APIPassword: a.Config.API.Password,
		ExportYears: a.Config.ExportYears,
	})
}

// Serve runs the HTTP server, the scheduler and the bot until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + a.Config.ServerPort,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.WithField("addr", server.Addr).Info("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.Scheduler.Start(gCtx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		a.Scheduler.Stop()
		return nil
	})

	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Start(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Log.WithError(err).Error("HTTP server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

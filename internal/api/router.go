// Package api serves the occasion and reminder REST API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/luach/internal/dayboundary"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/metrics"
	"github.com/tazhate/luach/internal/scheduler"
	"github.com/tazhate/luach/internal/service"
)

// SettingsStore reads reminder settings.
type SettingsStore interface {
	GetReminderSettings(ctx context.Context, userID int64) (*domain.ReminderSettings, error)
}

// PassRunner triggers a reminder pass.
type PassRunner interface {
	RunOnce(ctx context.Context) scheduler.PassResult
}

type Deps struct {
	Occasions   *service.OccasionService
	Reminders   *service.ReminderService
	Settings    SettingsStore
	Resolver    *dayboundary.Resolver
	Runner      PassRunner
	Metrics     *metrics.Metrics
	Log         logrus.FieldLogger
	APIUsername string
	APIPassword string
	ExportYears int
}

// NewRouter mounts the API. Routes under /api require basic auth when a
// username is configured.
func NewRouter(d Deps) chi.Router {
	h := &Handler{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(BasicAuth(d.APIUsername, d.APIPassword))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/occasions", h.ListOccasions)
			r.Post("/occasions", h.CreateOccasion)
			r.Get("/occasions.ics", h.ExportOccasions)
			r.Get("/occasions/{occasionID}", h.GetOccasion)
			r.Delete("/occasions/{occasionID}", h.DeleteOccasion)
			r.Get("/today", h.Today)
		})

		if d.Runner != nil {
			r.Post("/reminders/run", h.RunReminders)
		}
	})

	return r
}

// BasicAuth rejects requests without matching credentials. An empty username
// disables the check.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, p, ok := r.BasicAuth()
			if !ok || u != username || p != password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Luach API"`)
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

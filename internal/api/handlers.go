package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/export"
	"github.com/tazhate/luach/internal/service"
)

type Handler struct {
	deps Deps
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	return id, nil
}

// GET /api/users/{userID}/occasions
func (h *Handler) ListOccasions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	occasions, err := h.deps.Occasions.List(r.Context(), uid)
	if err != nil {
		h.internalError(w, "list occasions", err)
		return
	}
	resp := make([]OccasionResponse, 0, len(occasions))
	for _, o := range occasions {
		resp = append(resp, occasionToResponse(o))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// POST /api/users/{userID}/occasions
func (h *Handler) CreateOccasion(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req OccasionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	kind, err := domain.ParseOccasionKind(req.Kind)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	in := service.OccasionInput{
		Name:            req.Name,
		Notes:           req.Notes,
		Kind:            kind,
		HebrewYear:      req.HebrewYear,
		HebrewMonth:     req.HebrewMonth,
		HebrewDay:       req.HebrewDay,
		RemindDayOf:     req.RemindDayOf,
		RemindDayBefore: req.RemindDayBefore,
		BackColor:       req.BackColor,
		TextColor:       req.TextColor,
	}
	if req.SolarDate != "" {
		if in.Solar, err = time.Parse("2006-01-02", req.SolarDate); err != nil {
			jsonError(w, "invalid solar_date, use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	o, err := h.deps.Occasions.Create(r.Context(), uid, in)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResponse(w, http.StatusCreated, occasionToResponse(o))
}

// GET /api/users/{userID}/occasions/{occasionID}
func (h *Handler) GetOccasion(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	o, err := h.deps.Occasions.Get(r.Context(), uid, chi.URLParam(r, "occasionID"))
	if errors.Is(err, service.ErrNotFound) {
		jsonError(w, "occasion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, "get occasion", err)
		return
	}
	jsonResponse(w, http.StatusOK, occasionToResponse(o))
}

// DELETE /api/users/{userID}/occasions/{occasionID}
func (h *Handler) DeleteOccasion(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.deps.Occasions.Delete(r.Context(), uid, chi.URLParam(r, "occasionID"))
	if errors.Is(err, service.ErrNotFound) {
		jsonError(w, "occasion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, "delete occasion", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /api/users/{userID}/today
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	settings, err := h.deps.Settings.GetReminderSettings(r.Context(), uid)
	if err != nil {
		h.internalError(w, "load settings", err)
		return
	}
	occasions, err := h.deps.Occasions.List(r.Context(), uid)
	if err != nil {
		h.internalError(w, "list occasions", err)
		return
	}

	policy, loc := domain.BoundarySunset, domain.LocationOrDefault("")
	if settings != nil {
		policy, loc = settings.DayBoundary, settings.Location()
	}
	due := h.deps.Reminders.Due(occasions, h.deps.Resolver.Today(policy, loc))

	jsonResponse(w, http.StatusOK, TodayResponse{
		Today:           dayToResponse(due.Today),
		Tomorrow:        dayToResponse(due.Tomorrow),
		TodayMatches:    matchesToResponse(due.TodayMatches),
		TomorrowMatches: matchesToResponse(due.TomorrowMatches),
	})
}

// GET /api/users/{userID}/occasions.ics
func (h *Handler) ExportOccasions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	occasions, err := h.deps.Occasions.List(r.Context(), uid)
	if err != nil {
		h.internalError(w, "list occasions", err)
		return
	}

	now := h.deps.Resolver.Now()
	cal := export.Calendar(occasions, export.Options{
		From:  calendar.FromTime(now),
		Years: h.deps.ExportYears,
		Stamp: now,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="occasions.ics"`)
	if err := export.Write(w, cal); err != nil {
		h.deps.Log.WithError(err).Error("write calendar")
	}
}

// POST /api/reminders/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	res := h.deps.Runner.RunOnce(r.Context())
	data := map[string]any{
		"users":        res.Users,
		"skipped":      res.Skipped,
		"already_done": res.AlreadyDone,
		"processed":    res.Processed,
		"enqueued":     res.Enqueued,
		"failed":       res.Failed,
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}
	jsonResponse(w, http.StatusOK, data)
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.deps.Log.WithError(err).Error(op)
	jsonError(w, "internal error", http.StatusInternalServerError)
}

package api

import (
	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/service"
)

type OccasionRequest struct {
	Name            string `json:"name"`
	Notes           string `json:"notes"`
	Kind            string `json:"kind"`
	HebrewYear      int    `json:"hebrew_year"`
	HebrewMonth     int    `json:"hebrew_month"`
	HebrewDay       int    `json:"hebrew_day"`
	SolarDate       string `json:"solar_date"` // YYYY-MM-DD
	RemindDayOf     bool   `json:"remind_day_of"`
	RemindDayBefore bool   `json:"remind_day_before"`
	BackColor       string `json:"back_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
}

type OccasionResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Notes           string `json:"notes,omitempty"`
	Kind            string `json:"kind"`
	Hebrew          string `json:"hebrew"`
	SolarDate       string `json:"solar_date"`
	RemindDayOf     bool   `json:"remind_day_of"`
	RemindDayBefore bool   `json:"remind_day_before"`
	BackColor       string `json:"back_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
}

type DayResponse struct {
	Hebrew    string `json:"hebrew"`
	Gregorian string `json:"gregorian"`
}

type MatchResponse struct {
	OccasionID  string `json:"occasion_id"`
	Label       string `json:"label"`
	Anniversary int    `json:"anniversary"`
}

type TodayResponse struct {
	Today           DayResponse     `json:"today"`
	Tomorrow        DayResponse     `json:"tomorrow"`
	TodayMatches    []MatchResponse `json:"today_matches"`
	TomorrowMatches []MatchResponse `json:"tomorrow_matches"`
}

func occasionToResponse(o *domain.Occasion) OccasionResponse {
	resp := OccasionResponse{
		ID:              o.ID,
		Name:            o.Name,
		Notes:           o.Notes,
		Kind:            string(o.Kind),
		RemindDayOf:     o.RemindDayOf,
		RemindDayBefore: o.RemindDayBefore,
		BackColor:       o.BackColor,
		TextColor:       o.TextColor,
	}
	if o.Anchor.Consistent() == nil {
		resp.Hebrew = o.Anchor.Date().String()
		resp.SolarDate = o.Anchor.SolarDate().Format("2006-01-02")
	}
	return resp
}

func dayToResponse(d calendar.Date) DayResponse {
	return DayResponse{Hebrew: d.String(), Gregorian: d.Gregorian().Format("2006-01-02")}
}

func matchesToResponse(matches []service.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchResponse{OccasionID: m.Occasion.ID, Label: m.Label(), Anniversary: m.Anniversary})
	}
	return out
}

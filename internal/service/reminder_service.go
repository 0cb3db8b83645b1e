package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/matcher"
)

// Match is an occasion falling on a given day.
type Match struct {
	Occasion    *domain.Occasion
	Date        calendar.Date
	Anniversary int
}

// Label renders "Name (15th anniversary)". The suffix appears only for yearly
// kinds past their first occurrence.
func (m Match) Label() string {
	if m.Occasion.Kind.Yearly() && m.Anniversary > 0 {
		return fmt.Sprintf("%s (%d%s anniversary)", m.Occasion.Name, m.Anniversary, matcher.Ordinal(m.Anniversary))
	}
	return m.Occasion.Name
}

// Due holds the reminders for a day and the day after it.
type Due struct {
	Today           calendar.Date
	Tomorrow        calendar.Date
	TodayMatches    []Match
	TomorrowMatches []Match
}

func (d Due) Empty() bool {
	return len(d.TodayMatches) == 0 && len(d.TomorrowMatches) == 0
}

// Names lists matched occasion names, today first, without repeats.
func (d Due) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range append(append([]Match{}, d.TodayMatches...), d.TomorrowMatches...) {
		if !seen[m.Occasion.Name] {
			seen[m.Occasion.Name] = true
			names = append(names, m.Occasion.Name)
		}
	}
	return names
}

type ReminderService struct {
	log logrus.FieldLogger
}

func NewReminderService(log logrus.FieldLogger) *ReminderService {
	return &ReminderService{log: log}
}

// Due matches occasions against today (RemindDayOf) and tomorrow
// (RemindDayBefore). Malformed occasions are logged and skipped.
func (s *ReminderService) Due(occasions []*domain.Occasion, today calendar.Date) Due {
	due := Due{Today: today, Tomorrow: today.AddDays(1)}
	for _, o := range occasions {
		if err := matcher.Check(o); err != nil {
			s.log.WithError(err).WithField("occasion_id", occasionID(o)).Warn("skipping malformed occasion")
			continue
		}
		if o.RemindDayOf && matcher.Matches(o, due.Today) {
			due.TodayMatches = append(due.TodayMatches, Match{o, due.Today, matcher.Anniversary(o, due.Today)})
		}
		if o.RemindDayBefore && matcher.Matches(o, due.Tomorrow) {
			due.TomorrowMatches = append(due.TomorrowMatches, Match{o, due.Tomorrow, matcher.Anniversary(o, due.Tomorrow)})
		}
	}
	return due
}

// RenderDigest builds the combined digest for a user's day. It returns nil
// when nothing is due.
func (s *ReminderService) RenderDigest(userID int64, recipient string, due Due) *domain.OutgoingMessage {
	if due.Empty() {
		return nil
	}

	var body, text strings.Builder
	section := func(title string, matches []Match) {
		if len(matches) == 0 {
			return
		}
		fmt.Fprintf(&body, "<h3>%s</h3>\n<ul>\n", title)
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		fmt.Fprintf(&text, "%s\n", title)
		for _, m := range matches {
			line := m.Label()
			if notes := strings.TrimSpace(m.Occasion.Notes); notes != "" {
				fmt.Fprintf(&body, "<li>%s: %s</li>\n", html.EscapeString(line), html.EscapeString(notes))
				fmt.Fprintf(&text, "• %s: %s\n", line, notes)
			} else {
				fmt.Fprintf(&body, "<li>%s</li>\n", html.EscapeString(line))
				fmt.Fprintf(&text, "• %s\n", line)
			}
		}
		body.WriteString("</ul>\n")
	}
	section("Today", due.TodayMatches)
	section("Tomorrow", due.TomorrowMatches)

	return &domain.OutgoingMessage{
		ID:        domain.DigestID(userID, due.Today.Abs()),
		UserID:    userID,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Reminders for %s: %s", due.Today, strings.Join(due.Names(), ", ")),
		HTML:      body.String(),
		Text:      text.String(),
	}
}

func occasionID(o *domain.Occasion) string {
	if o == nil {
		return ""
	}
	return o.ID
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayBoundaryPolicy decides when a calendar day turns over.
type DayBoundaryPolicy string

const (
	BoundarySunset   DayBoundaryPolicy = "sunset"
	BoundaryMidnight DayBoundaryPolicy = "midnight"
)

// ParseDayBoundary defaults to sunset for empty or unknown values.
func ParseDayBoundary(s string) DayBoundaryPolicy {
	if DayBoundaryPolicy(strings.ToLower(strings.TrimSpace(s))) == BoundaryMidnight {
		return BoundaryMidnight
	}
	return BoundarySunset
}

// ReminderSettings is a user's delivery configuration.
type ReminderSettings struct {
	UserID           int64
	LocationName     string
	DayBoundary      DayBoundaryPolicy
	RemindersEnabled bool
	Recipient        string // email address or "telegram:<chat id>"
	UpdatedAt        time.Time
}

// Location resolves the configured location name.
func (s *ReminderSettings) Location() Location {
	return LocationOrDefault(s.LocationName)
}

// Deliverable reports whether a digest may be sent to this user.
func (s *ReminderSettings) Deliverable() bool {
	return s != nil && s.RemindersEnabled && strings.TrimSpace(s.Recipient) != ""
}

// Checkpoint records the last absolute day the scheduler handled for a user.
type Checkpoint struct {
	UserID              int64
	LastProcessedAbsDay int64
	ProcessedAt         time.Time
}

// Handled reports whether day abs was already processed.
func (c *Checkpoint) Handled(abs int64) bool {
	return c != nil && c.LastProcessedAbsDay >= abs
}

// Channel is a reminder delivery channel.
type Channel string

const (
	ChannelLocalNotification Channel = "local-notification"
	ChannelEmail             Channel = "email"
)

// DedupKey is the ledger key for one delivery of an occasion on a day.
func DedupKey(occasionID string, absDay int64, ch Channel) string {
	return fmt.Sprintf("dedup:%s:%s:%d", ch, occasionID, absDay)
}

// OutgoingMessage is a queued digest.
type OutgoingMessage struct {
	Seq       int64 // queue position, increases with every insert
	ID        string
	UserID    int64
	Recipient string
	Subject   string
	HTML      string
	Text      string
	CreatedAt time.Time
	SentAt    *time.Time
	Attempts  int
	LastError string
}

// DigestID is the deterministic outbox id for a user's digest on a day.
func DigestID(userID, absDay int64) string {
	return fmt.Sprintf("digest_%d_%d", userID, absDay)
}

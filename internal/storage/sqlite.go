package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/luach/internal/calendar"
	"github.com/tazhate/luach/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// MaxDeliveryAttempts bounds retries of a queued message.
const MaxDeliveryAttempts = 5

const solarLayout = "2006-01-02"

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS occasions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			notes TEXT DEFAULT '',
			kind TEXT NOT NULL,
			h_year INTEGER DEFAULT 0,
			h_month INTEGER DEFAULT 0,
			h_day INTEGER DEFAULT 0,
			abs_day INTEGER DEFAULT 0,
			solar_date TEXT DEFAULT '',
			remind_day_of INTEGER DEFAULT 0,
			remind_day_before INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_occasions_user_id ON occasions(user_id)`,
		// Presentation colors
		`ALTER TABLE occasions ADD COLUMN back_color TEXT DEFAULT ''`,
		`ALTER TABLE occasions ADD COLUMN text_color TEXT DEFAULT ''`,
		`CREATE TABLE IF NOT EXISTS reminder_settings (
			user_id INTEGER PRIMARY KEY,
			location_name TEXT DEFAULT '',
			day_boundary TEXT DEFAULT 'sunset',
			reminders_enabled INTEGER DEFAULT 0,
			recipient TEXT DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_checkpoints (
			user_id INTEGER PRIMARY KEY,
			last_abs_day INTEGER NOT NULL,
			processed_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		// Outgoing message queue (digests)
		`CREATE TABLE IF NOT EXISTS outbox (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			html TEXT NOT NULL,
			body_text TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			sent_at DATETIME,
			attempts INTEGER DEFAULT 0,
			last_error TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_sent_at ON outbox(sent_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Users ===

func (s *Storage) CreateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?)`, u.Name)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// === Occasions ===

const occasionColumns = `id, user_id, name, notes, kind, h_year, h_month, h_day, abs_day, solar_date,
	remind_day_of, remind_day_before, back_color, text_color, created_at`

func (s *Storage) CreateOccasion(ctx context.Context, o *domain.Occasion) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO occasions (`+occasionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Name, o.Notes, string(o.Kind),
		o.Anchor.Year, o.Anchor.Month, o.Anchor.Day, o.Anchor.AbsDay, formatSolar(o.Anchor.Solar),
		o.RemindDayOf, o.RemindDayBefore, o.BackColor, o.TextColor, o.CreatedAt,
	)
	return err
}

func (s *Storage) UpdateOccasion(ctx context.Context, o *domain.Occasion) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE occasions SET name = ?, notes = ?, kind = ?, h_year = ?, h_month = ?, h_day = ?, abs_day = ?,
		 solar_date = ?, remind_day_of = ?, remind_day_before = ?, back_color = ?, text_color = ?
		 WHERE id = ? AND user_id = ?`,
		o.Name, o.Notes, string(o.Kind), o.Anchor.Year, o.Anchor.Month, o.Anchor.Day, o.Anchor.AbsDay,
		formatSolar(o.Anchor.Solar), o.RemindDayOf, o.RemindDayBefore, o.BackColor, o.TextColor,
		o.ID, o.UserID,
	)
	return err
}

func (s *Storage) GetOccasion(ctx context.Context, id string) (*domain.Occasion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+occasionColumns+` FROM occasions WHERE id = ?`, id)
	o, err := scanOccasion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// ListOccasions returns a user's occasions in creation order.
func (s *Storage) ListOccasions(ctx context.Context, userID int64) ([]*domain.Occasion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occasionColumns+` FROM occasions WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occasions []*domain.Occasion
	for rows.Next() {
		o, err := scanOccasion(rows)
		if err != nil {
			return nil, err
		}
		occasions = append(occasions, o)
	}
	return occasions, rows.Err()
}

func (s *Storage) DeleteOccasion(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM occasions WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOccasion normalizes the stored kind tag. An unrecognized tag is kept
// verbatim so the matcher rejects the occasion instead of the whole listing
// failing.
func scanOccasion(sc scanner) (*domain.Occasion, error) {
	o := &domain.Occasion{}
	var kind, solar string
	err := sc.Scan(&o.ID, &o.UserID, &o.Name, &o.Notes, &kind,
		&o.Anchor.Year, &o.Anchor.Month, &o.Anchor.Day, &o.Anchor.AbsDay, &solar,
		&o.RemindDayOf, &o.RemindDayBefore, &o.BackColor, &o.TextColor, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Kind, _ = domain.ParseOccasionKind(kind)
	o.Anchor.Solar = resolveSolar(solar, o.Anchor)
	return o, nil
}

// resolveSolar reads the stored Gregorian projection. Older clients stored
// the instant of local midnight, which falls on the previous UTC day east of
// Greenwich; such a timestamp within a day of the Hebrew anchor is resolved to
// the anchor's own Gregorian day.
func resolveSolar(raw string, a domain.Anchor) time.Time {
	t, exact := parseSolar(raw)
	if exact || t.IsZero() {
		return t
	}
	want, ok := anchorGregorian(a)
	if !ok {
		return t
	}
	if diff := t.Sub(want); diff >= -24*time.Hour && diff <= 24*time.Hour {
		return want
	}
	return t
}

func anchorGregorian(a domain.Anchor) (time.Time, bool) {
	if a.AbsDay != 0 {
		return calendar.FromAbs(a.AbsDay).Gregorian(), true
	}
	d, err := calendar.New(a.Year, a.Month, a.Day)
	if err != nil {
		return time.Time{}, false
	}
	return d.Gregorian(), true
}

func formatSolar(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(solarLayout)
}

// parseSolar accepts plain dates and the full ISO timestamps older clients
// stored. A timestamp is rounded to the nearest UTC day and reported as
// inexact.
func parseSolar(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(solarLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		y, m, d := t.UTC().Add(12 * time.Hour).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), false
	}
	return time.Time{}, true
}

// === Reminder settings ===

func (s *Storage) GetReminderSettings(ctx context.Context, userID int64) (*domain.ReminderSettings, error) {
	rs := &domain.ReminderSettings{}
	var boundary string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, location_name, day_boundary, reminders_enabled, recipient, updated_at
		 FROM reminder_settings WHERE user_id = ?`, userID,
	).Scan(&rs.UserID, &rs.LocationName, &boundary, &rs.RemindersEnabled, &rs.Recipient, &rs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rs.DayBoundary = domain.ParseDayBoundary(boundary)
	return rs, nil
}

func (s *Storage) SaveReminderSettings(ctx context.Context, rs *domain.ReminderSettings) error {
	rs.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_settings (user_id, location_name, day_boundary, reminders_enabled, recipient, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   location_name = excluded.location_name,
		   day_boundary = excluded.day_boundary,
		   reminders_enabled = excluded.reminders_enabled,
		   recipient = excluded.recipient,
		   updated_at = excluded.updated_at`,
		rs.UserID, rs.LocationName, string(rs.DayBoundary), rs.RemindersEnabled, rs.Recipient, rs.UpdatedAt,
	)
	return err
}

// === Reminder checkpoints ===

func (s *Storage) GetCheckpoint(ctx context.Context, userID int64) (*domain.Checkpoint, error) {
	cp := &domain.Checkpoint{}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, last_abs_day, processed_at FROM reminder_checkpoints WHERE user_id = ?`, userID,
	).Scan(&cp.UserID, &cp.LastProcessedAbsDay, &cp.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cp, err
}

// AdvanceCheckpoint moves the cursor forward; an older day never overwrites
// a newer one.
func (s *Storage) AdvanceCheckpoint(ctx context.Context, userID, absDay int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_checkpoints (user_id, last_abs_day, processed_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   last_abs_day = excluded.last_abs_day,
		   processed_at = excluded.processed_at
		 WHERE excluded.last_abs_day >= reminder_checkpoints.last_abs_day`,
		userID, absDay, at,
	)
	return err
}

// === Outbox ===

// EnqueueMessage stores a message unless one with the same id exists. It
// reports whether a new row was written.
func (s *Storage) EnqueueMessage(ctx context.Context, m *domain.OutgoingMessage) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (id, user_id, recipient, subject, html, body_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, m.UserID, m.Recipient, m.Subject, m.HTML, m.Text, m.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const outboxColumns = `id, user_id, recipient, subject, html, body_text, created_at, sent_at, attempts, last_error`

func (s *Storage) GetMessage(ctx context.Context, id string) (*domain.OutgoingMessage, error) {
	m := &domain.OutgoingMessage{}
	err := s.db.QueryRowContext(ctx, `SELECT rowid, `+outboxColumns+` FROM outbox WHERE id = ?`, id).
		Scan(&m.Seq, &m.ID, &m.UserID, &m.Recipient, &m.Subject, &m.HTML, &m.Text, &m.CreatedAt, &m.SentAt, &m.Attempts, &m.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListPendingMessages returns unsent messages that still have attempts left,
// oldest first, starting after queue position after.
func (s *Storage) ListPendingMessages(ctx context.Context, after int64, limit int) ([]*domain.OutgoingMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, `+outboxColumns+` FROM outbox
		 WHERE sent_at IS NULL AND attempts < ? AND rowid > ?
		 ORDER BY rowid LIMIT ?`,
		MaxDeliveryAttempts, after, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.OutgoingMessage
	for rows.Next() {
		m := &domain.OutgoingMessage{}
		if err := rows.Scan(&m.Seq, &m.ID, &m.UserID, &m.Recipient, &m.Subject, &m.HTML, &m.Text, &m.CreatedAt, &m.SentAt, &m.Attempts, &m.LastError); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Storage) MarkMessageSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET sent_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`, at, id)
	return err
}

func (s *Storage) MarkMessageFailed(ctx context.Context, id string, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`, cause.Error(), id)
	return err
}

// CountMessages returns the number of queued messages for a user, sent or not.
func (s *Storage) CountMessages(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

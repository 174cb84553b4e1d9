package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Event kinds recorded by the journal
const (
	KindClick  = "click"
	KindSignup = "signup"
)

// Event is one accepted click or signup. The journal is append-only and exists
// for audit and offline reconciliation; the counters on the link documents
// remain the live source.
type Event struct {
	ID         int64     `json:"id"`
	LinkID     string    `json:"linkId"`
	Code       string    `json:"code"`
	Kind       string    `json:"kind"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Journal persists referral events in PostgreSQL
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a journal over an open database handle
func New(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger}
}

// EnsureSchema creates the events table if it does not exist yet
func (j *Journal) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS referral_events (
			id          BIGSERIAL PRIMARY KEY,
			link_id     TEXT        NOT NULL,
			code        TEXT        NOT NULL,
			kind        TEXT        NOT NULL,
			request_id  TEXT        NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure journal schema: %w", err)
	}
	return nil
}

// Record appends one event
func (j *Journal) Record(ctx context.Context, ev Event) error {
	query := `
		INSERT INTO referral_events (link_id, code, kind, request_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, occurred_at
	`

	err := j.db.QueryRowContext(ctx, query, ev.LinkID, ev.Code, ev.Kind, ev.RequestID).
		Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		j.logger.Error("failed to record referral event",
			slog.String("link_id", ev.LinkID),
			slog.String("kind", ev.Kind),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to record referral event: %w", err)
	}

	return nil
}

// Recent returns the newest events, most recent first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, link_id, code, kind, request_id, occurred_at
		FROM referral_events
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list referral events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.LinkID, &ev.Code, &ev.Kind, &ev.RequestID, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan referral event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByLink returns per-kind event totals for one link, for offline
// cross-checks against the link's counters
func (j *Journal) CountByLink(ctx context.Context, linkID string) (clicks, signups int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE kind = $2),
			COUNT(*) FILTER (WHERE kind = $3)
		FROM referral_events
		WHERE link_id = $1
	`

	err = j.db.QueryRowContext(ctx, query, linkID, KindClick, KindSignup).Scan(&clicks, &signups)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count referral events: %w", err)
	}
	return clicks, signups, nil
}

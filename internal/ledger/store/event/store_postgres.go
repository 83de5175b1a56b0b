package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"japa/internal/ledger"
	id "japa/pkg/domain"
)

// PostgresStore implements ledger.EventStore on an append-only
// repetition_events table. Events are never updated or deleted; dedup is
// enforced by a partial unique index on (profile_id, dedup_key).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the event table and its indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS repetition_events (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			profile_id TEXT NOT NULL,
			source TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			dedup_key TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS repetition_events_profile_time
			ON repetition_events (profile_id, occurred_at, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS repetition_events_profile_dedup
			ON repetition_events (profile_id, dedup_key)
			WHERE dedup_key IS NOT NULL`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure event schema: %w", err)
		}
	}
	return nil
}

// Append inserts one repetition event. Duplicate dedup keys are ignored
// via ON CONFLICT DO NOTHING and reported with inserted=false.
func (s *PostgresStore) Append(ctx context.Context, evt ledger.RepetitionEvent) (id.EventID, bool, error) {
	var dedupKey sql.NullString
	if evt.DedupKey != "" {
		dedupKey = sql.NullString{String: evt.DedupKey, Valid: true}
	}

	query := `
		INSERT INTO repetition_events (id, profile_id, source, occurred_at, dedup_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id, dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
		RETURNING seq
	`
	var seq int64
	err := s.db.QueryRowContext(ctx, query,
		uuid.UUID(evt.ID),
		evt.ProfileID.String(),
		evt.Source.String(),
		evt.OccurredAt,
		dedupKey,
	).Scan(&seq)
	if err == nil {
		return evt.ID, true, nil
	}
	if err != sql.ErrNoRows {
		return id.EventID{}, false, fmt.Errorf("insert repetition event: %w", err)
	}

	// Conflict: the dedup key was already used. Return the stored event.
	var existing uuid.UUID
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM repetition_events WHERE profile_id = $1 AND dedup_key = $2`,
		evt.ProfileID.String(), evt.DedupKey,
	).Scan(&existing)
	if err != nil {
		return id.EventID{}, false, fmt.Errorf("lookup deduplicated event: %w", err)
	}
	return id.EventID(existing), false, nil
}

// ListByProfile pages events in (occurred_at, seq) order after the cursor.
func (s *PostgresStore) ListByProfile(ctx context.Context, profileID id.ProfileID, after ledger.Cursor, limit int) ([]ledger.RepetitionEvent, error) {
	query := `
		SELECT seq, id, profile_id, source, occurred_at, dedup_key
		FROM repetition_events
		WHERE profile_id = $1 AND (occurred_at, seq) > ($2::timestamptz, $3)
		ORDER BY occurred_at, seq
		LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, query,
		profileID.String(), after.OccurredAt, after.Seq, limit)
	if err != nil {
		return nil, fmt.Errorf("query repetition events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountBetween counts the profile's events in [startInclusive, endExclusive).
func (s *PostgresStore) CountBetween(ctx context.Context, profileID id.ProfileID, startInclusive, endExclusive time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM repetition_events
		WHERE profile_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`
	var count int64
	err := s.db.QueryRowContext(ctx, query,
		profileID.String(), startInclusive, endExclusive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count repetition events: %w", err)
	}
	return count, nil
}

// DayCounts buckets the profile's history into calendar dates in loc.
func (s *PostgresStore) DayCounts(ctx context.Context, profileID id.ProfileID, loc *time.Location) (map[id.Day]int64, error) {
	query := `
		SELECT to_char(occurred_at AT TIME ZONE $2, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM repetition_events
		WHERE profile_id = $1
		GROUP BY day
	`
	rows, err := s.db.QueryContext(ctx, query, profileID.String(), loc.String())
	if err != nil {
		return nil, fmt.Errorf("query day counts: %w", err)
	}
	defer rows.Close()

	days := make(map[id.Day]int64)
	for rows.Next() {
		var (
			day   string
			count int64
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		days[id.Day(day)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day counts: %w", err)
	}
	return days, nil
}

// Profiles lists every profile that has recorded at least one event.
func (s *PostgresStore) Profiles(ctx context.Context) ([]id.ProfileID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT profile_id FROM repetition_events ORDER BY profile_id`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []id.ProfileID
	for rows.Next() {
		var profile string
		if err := rows.Scan(&profile); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, id.ProfileID(profile))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func scanEvents(rows *sql.Rows) ([]ledger.RepetitionEvent, error) {
	var events []ledger.RepetitionEvent
	for rows.Next() {
		var (
			evt      ledger.RepetitionEvent
			eventID  uuid.UUID
			profile  string
			source   string
			dedupKey sql.NullString
		)
		err := rows.Scan(&evt.Seq, &eventID, &profile, &source, &evt.OccurredAt, &dedupKey)
		if err != nil {
			return nil, fmt.Errorf("scan repetition event: %w", err)
		}
		evt.ID = id.EventID(eventID)
		evt.ProfileID = id.ProfileID(profile)
		evt.Source = id.Source(source)
		evt.OccurredAt = evt.OccurredAt.UTC()
		if dedupKey.Valid {
			evt.DedupKey = dedupKey.String
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repetition events: %w", err)
	}
	return events, nil
}

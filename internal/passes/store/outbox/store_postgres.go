package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
	"mountpass/pkg/platform/tx"
)

// NotifyChannel is the Postgres channel signalled on every append.
const NotifyChannel = "pass_outbox"

// PostgresStore persists outbox rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts the event and queues a NOTIFY, which Postgres delivers only
// when the surrounding transaction commits.
func (s *PostgresStore) Append(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outbox event: %w", err)
	}
	db := tx.Executor(ctx, s.db)
	_, err = db.ExecContext(ctx, `
		INSERT INTO outbox (event_id, event_type, pass_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, string(event.Type), event.PassID, payload, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(event.Type)); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}
	return nil
}

// ListPending returns up to limit unpublished entries, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var (
			entry   models.OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Event); err != nil {
			return nil, fmt.Errorf("decode outbox event %d: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox entry %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

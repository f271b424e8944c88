package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"onboard/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the audit_events table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// PostgresStore keeps audit events in the audit_events table. Appends join a
// transaction carried in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts event. Replays of the same event ID are ignored.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var applicationID sql.NullInt64
	if event.ApplicationID > 0 {
		applicationID = sql.NullInt64{Int64: event.ApplicationID, Valid: true}
	}

	query := `
		INSERT INTO audit_events (id, event_type, request_id, application_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.RequestID,
		applicationID,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByType returns stored events of type t, newest first.
func (s *PostgresStore) ListByType(ctx context.Context, t EventType, limit int) ([]Event, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT payload FROM audit_events WHERE event_type = $1 ORDER BY occurred_at DESC LIMIT $2`,
		string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

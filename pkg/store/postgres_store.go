package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/talosprotocol/talos-audit-service/pkg/event"
)

// PostgresStore is the relational adapter. It keys on event_id and assigns
// a monotonic bigserial cursor column; ON CONFLICT (event_id) DO NOTHING
// enforces the port's append idempotency at the storage layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens (but does not migrate) a Postgres-backed store.
// Callers are expected to have applied the schema in Schema() already.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL this adapter expects. Exposed so cmd/talos-audit
// can apply it at startup without a separate migration tool — the teacher
// pack carries no migration framework either.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS events (
	cursor         BIGSERIAL PRIMARY KEY,
	event_id       TEXT UNIQUE NOT NULL,
	schema_id      TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	ts             TEXT NOT NULL,
	request_id     TEXT NOT NULL,
	surface_id     TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	principal      JSONB NOT NULL,
	http           JSONB NOT NULL,
	meta           JSONB NOT NULL,
	resource       JSONB,
	event_hash     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_cursor_idx ON events (cursor DESC);
CREATE INDEX IF NOT EXISTS events_outcome_idx ON events (outcome);
`
}

// Append inserts e. ON CONFLICT (event_id) DO NOTHING gives storage-layer
// idempotency, matching the port contract and spec §6's informative note
// on the persisted schema.
func (s *PostgresStore) Append(ctx context.Context, e event.Event) error {
	principal, err := json.Marshal(e.Principal)
	if err != nil {
		return fmt.Errorf("store: marshal principal: %w", err)
	}
	httpField, err := json.Marshal(e.HTTP)
	if err != nil {
		return fmt.Errorf("store: marshal http: %w", err)
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("store: marshal meta: %w", err)
	}
	var resource []byte
	if e.Resource != nil {
		resource, err = json.Marshal(e.Resource)
		if err != nil {
			return fmt.Errorf("store: marshal resource: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, schema_id, schema_version, ts, request_id, surface_id,
			outcome, principal, http, meta, resource, event_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.SchemaID, e.SchemaVersion, e.Ts, e.RequestID, e.SurfaceID,
		e.Outcome, principal, httpField, meta, nullableJSON(resource), e.EventHash,
	)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}

// ParseCursor validates the decimal bigserial shape this store produces.
func (s *PostgresStore) ParseCursor(cursor string) error {
	if cursor == "" {
		return nil
	}
	if _, err := strconv.ParseInt(cursor, 10, 64); err != nil {
		return ErrInvalidCursor
	}
	return nil
}

// List returns events strictly older than opts.Before, newest first.
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) (EventPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT cursor, event_id, schema_id, schema_version, ts, request_id,
		surface_id, outcome, principal, http, meta, resource, event_hash FROM events`
	var conditions []string
	var args []interface{}
	argN := 1

	if opts.Before != "" {
		if err := s.ParseCursor(opts.Before); err != nil {
			return EventPage{}, err
		}
		before, _ := strconv.ParseInt(opts.Before, 10, 64)
		conditions = append(conditions, fmt.Sprintf("cursor < $%d", argN))
		args = append(args, before)
		argN++
	}
	for _, field := range []string{"outcome"} {
		if v, ok := opts.Filters[field]; ok {
			conditions = append(conditions, fmt.Sprintf("%s = $%d", field, argN))
			args = append(args, v)
			argN++
		}
	}
	for _, field := range []string{"session_id", "correlation_id"} {
		if v, ok := opts.Filters[field]; ok {
			conditions = append(conditions, fmt.Sprintf("meta->>'%s' = $%d", field, argN))
			args = append(args, v)
			argN++
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY cursor DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return EventPage{}, fmt.Errorf("store: list query: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	var lastCursor int64
	for rows.Next() {
		var e event.Event
		var cursor int64
		var principal, httpField, meta []byte
		var resource sql.NullString

		if err := rows.Scan(&cursor, &e.EventID, &e.SchemaID, &e.SchemaVersion, &e.Ts,
			&e.RequestID, &e.SurfaceID, &e.Outcome, &principal, &httpField, &meta,
			&resource, &e.EventHash); err != nil {
			return EventPage{}, fmt.Errorf("store: scan row: %w", err)
		}

		if err := json.Unmarshal(principal, &e.Principal); err != nil {
			return EventPage{}, fmt.Errorf("store: unmarshal principal: %w", err)
		}
		if err := json.Unmarshal(httpField, &e.HTTP); err != nil {
			return EventPage{}, fmt.Errorf("store: unmarshal http: %w", err)
		}
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return EventPage{}, fmt.Errorf("store: unmarshal meta: %w", err)
		}
		if resource.Valid {
			if err := json.Unmarshal([]byte(resource.String), &e.Resource); err != nil {
				return EventPage{}, fmt.Errorf("store: unmarshal resource: %w", err)
			}
		}

		events = append(events, e)
		lastCursor = cursor
	}
	if err := rows.Err(); err != nil {
		return EventPage{}, fmt.Errorf("store: list rows: %w", err)
	}

	page := EventPage{Events: events, HasMore: len(events) == limit}
	if len(events) > 0 {
		page.NextCursor = strconv.FormatInt(lastCursor, 10)
	}
	return page, nil
}

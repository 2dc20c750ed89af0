// Package store defines the persistence port the ingest orchestrator
// depends on, plus two adapters implementing it: an in-memory store and a
// relational (Postgres) store. Only the port contract is core; either
// adapter is swappable without touching the orchestrator.
package store

import (
	"context"
	"errors"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
)

// ErrInvalidCursor is returned by ParseCursor when a cursor string is not
// shaped the way this adapter produces cursors.
var ErrInvalidCursor = errors.New("store: invalid cursor")

// EqualityFilters holds simple equality predicates an adapter may push
// down into its query (session_id/correlation_id read from the event's meta
// map, outcome from the event's own field). Unknown filter keys are ignored, per the
// store port's "filter support is optional" contract.
type EqualityFilters map[string]string

// ListOptions controls a call to Store.List.
type ListOptions struct {
	Before  string // cursor; list strictly older than this when non-empty
	Limit   int
	Filters EqualityFilters
}

// EventPage is one page of a descending-cursor listing.
type EventPage struct {
	Events     []event.Event
	NextCursor string // cursor of the oldest event returned, "" when none
	HasMore    bool   // true iff len(Events) == requested limit
}

// Store is the narrow persistence contract the ingest orchestrator depends
// on. Any adapter satisfying it is acceptable.
type Store interface {
	// Append persists an event durably. It must be idempotent on EventID:
	// a second append with an id already stored is a silent no-op — the
	// orchestrator has already rejected true duplicates upstream via the
	// Merkle membership check, so this path only guards against adapter
	// replay.
	Append(ctx context.Context, e event.Event) error

	// List returns events in descending cursor order, strictly older than
	// Before when supplied, clamped to Limit.
	List(ctx context.Context, opts ListOptions) (EventPage, error)

	// ParseCursor validates that a cursor string is shaped the way this
	// adapter produces cursors, without performing a lookup. Each adapter's
	// List calls it on Before and returns ErrInvalidCursor for a malformed
	// cursor, which the orchestrator reports as a ValidationError.
	ParseCursor(cursor string) error
}

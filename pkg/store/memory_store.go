package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
)

// MemoryStore is an append-only, in-process event store. It is grounded on
// the append-only-slice-plus-maps-plus-mutex shape of a classic audit
// store, adapted here from a free-form entry-type log to the spec's Event
// shape and to descending-cursor pagination.
type MemoryStore struct {
	mu     sync.RWMutex
	events []event.Event  // append order (ascending)
	byID   map[string]int // event_id -> index into events
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
	}
}

// Append persists e. A repeat of an already-stored event_id is a silent
// no-op, satisfying the port's idempotency contract.
func (s *MemoryStore) Append(ctx context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[e.EventID]; exists {
		return nil
	}

	s.byID[e.EventID] = len(s.events)
	s.events = append(s.events, e)
	return nil
}

// cursorOf renders a zero-padded decimal sequence number so lexicographic
// string comparison agrees with numeric append order.
func cursorOf(seq int) string {
	return fmt.Sprintf("%020d", seq)
}

// ParseCursor validates the zero-padded-decimal shape this store produces.
func (s *MemoryStore) ParseCursor(cursor string) error {
	if len(cursor) != 20 {
		return ErrInvalidCursor
	}
	for _, r := range cursor {
		if r < '0' || r > '9' {
			return ErrInvalidCursor
		}
	}
	return nil
}

// List returns events strictly older than opts.Before (if set), newest
// first, clamped to opts.Limit.
func (s *MemoryStore) List(ctx context.Context, opts ListOptions) (EventPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var beforeSeq int = len(s.events) // exclusive upper bound, in sequence-number space
	if opts.Before != "" {
		if err := s.ParseCursor(opts.Before); err != nil {
			return EventPage{}, err
		}
		var parsed int
		if _, err := fmt.Sscanf(opts.Before, "%020d", &parsed); err != nil {
			return EventPage{}, ErrInvalidCursor
		}
		beforeSeq = parsed
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = len(s.events)
	}

	page := make([]event.Event, 0, limit)
	lastIdx := -1
	for i := beforeSeq - 1; i >= 0; i-- {
		e := s.events[i]
		if !matchesFilters(e, opts.Filters) {
			continue
		}
		page = append(page, e)
		lastIdx = i
		if len(page) >= limit {
			break
		}
	}

	result := EventPage{Events: page, HasMore: len(page) == limit && limit > 0}
	if lastIdx >= 0 {
		result.NextCursor = cursorOf(lastIdx)
	}
	return result, nil
}

// matchesFilters applies the equality push-down: session_id/correlation_id
// read from meta, outcome read from the event itself. Unknown keys are
// ignored.
func matchesFilters(e event.Event, filters EqualityFilters) bool {
	for k, v := range filters {
		switch k {
		case "outcome":
			if e.Outcome != v {
				return false
			}
		case "session_id":
			if s, ok := e.Meta["session_id"].(string); !ok || s != v {
				return false
			}
		case "correlation_id":
			if s, ok := e.Meta["correlation_id"].(string); !ok || s != v {
				return false
			}
		}
	}
	return true
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

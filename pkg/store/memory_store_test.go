package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
)

func makeEvent(id string) event.Event {
	return event.Event{
		SchemaID:      event.DefaultSchemaID,
		SchemaVersion: event.DefaultSchemaVersion,
		EventID:       id,
		Ts:            "2026-01-01T00:00:00Z",
		RequestID:     "r-" + id,
		SurfaceID:     "s1",
		Outcome:       "success",
		Principal:     map[string]interface{}{"id": "p1"},
		HTTP:          map[string]interface{}{"path": "/x"},
		Meta:          map[string]interface{}{},
	}
}

func TestMemoryStore_AppendIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeEvent("e1")

	if err := s.Append(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, e); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 stored event after duplicate append, got %d", s.Len())
	}
}

func TestMemoryStore_ListDescending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, makeEvent(fmt.Sprintf("e%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.List(ctx, ListOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(page.Events))
	}
	if page.Events[0].EventID != "e4" || page.Events[2].EventID != "e2" {
		t.Fatalf("unexpected descending order: %v", page.Events)
	}
	if !page.HasMore {
		t.Fatal("expected HasMore true")
	}

	next, err := s.List(ctx, ListOptions{Before: page.NextCursor, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Events) != 2 {
		t.Fatalf("expected 2 remaining events, got %d", len(next.Events))
	}
	if next.Events[0].EventID != "e1" || next.Events[1].EventID != "e0" {
		t.Fatalf("unexpected second page: %v", next.Events)
	}
	if next.HasMore {
		t.Fatal("expected HasMore false on final page")
	}
}

func TestMemoryStore_InvalidCursor(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.List(context.Background(), ListOptions{Before: "not-a-cursor", Limit: 10}); err != ErrInvalidCursor {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestMemoryStore_EqualityFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	success := makeEvent("e1")
	failure := makeEvent("e2")
	failure.Outcome = "failure"

	if err := s.Append(ctx, success); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, failure); err != nil {
		t.Fatal(err)
	}

	page, err := s.List(ctx, ListOptions{Limit: 10, Filters: EqualityFilters{"outcome": "failure"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 1 || page.Events[0].EventID != "e2" {
		t.Fatalf("expected only e2, got %v", page.Events)
	}
}

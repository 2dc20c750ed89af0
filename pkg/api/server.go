package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talosprotocol/talos-audit-service/pkg/broadcast"
	"github.com/talosprotocol/talos-audit-service/pkg/event"
	"github.com/talosprotocol/talos-audit-service/pkg/ingest"
	"github.com/talosprotocol/talos-audit-service/pkg/store"
)

// Clock abstracts time.Now so handlers are testable without wall-clock
// flakiness; defaults to time.Now.
type Clock func() time.Time

// Server holds the wiring every HTTP handler needs: the orchestrator (the
// single write/read path over the Merkle accumulator and store), the
// broadcaster for the SSE stream, the CEL filter evaluator, and build info
// for /version.
type Server struct {
	Orchestrator *ingest.Orchestrator
	Broadcaster  *broadcast.Broadcaster
	Filters      *FilterEvaluator
	ServiceName  string
	Version      string
	GitSHA       string
	HeartbeatEvery time.Duration
	Now          Clock
}

// Routes builds the HTTP mux for the spec's external surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/events", s.eventsRouter())
	mux.HandleFunc("/api/events", s.handleListEvents)
	mux.HandleFunc("/root", s.handleRoot)
	mux.HandleFunc("/proof/", s.handleProof)
	return mux
}

// eventsRouter dispatches GET /events to SSE and POST /events to ingest —
// both share the same path. Duplicate submission is rejected by the
// orchestrator's event_id check rather than a separate idempotency-key
// layer, since the write path already has a natural dedup key.
func (s *Server) eventsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleStream(w, r)
		case http.MethodPost:
			s.handleIngest(w, r)
		default:
			WriteMethodNotAllowed(w)
		}
	})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   s.ServiceName,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": s.Version,
		"git_sha":  s.GitSHA,
		"service": s.ServiceName,
	})
}

// handleIngest decodes, structurally validates, and hands an event to the
// orchestrator, echoing the accepted event back on success.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := readLimited(r)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if msg, err := ValidateEventBody(body); err != nil {
		WriteInternal(w, err)
		return
	} else if msg != "" {
		WriteBadRequest(w, msg)
		return
	}

	e, err := event.FromJSON(body)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	e.ApplyDefaults()

	accepted, err := s.Orchestrator.Ingest(r.Context(), *e)
	if err != nil {
		WriteFromKind(w, string(ingest.KindOf(err)), err)
		return
	}

	canonical, err := accepted.CanonicalJSON()
	if err != nil {
		WriteInternal(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(canonical)
}

// handleListEvents serves GET /api/events: descending pagination with an
// optional equality-filter push-down plus an optional CEL `filter`
// expression applied to the returned page.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	opts := store.ListOptions{
		Before: q.Get("cursor"),
		Limit:  limit,
		Filters: store.EqualityFilters{},
	}
	for _, field := range []string{"outcome", "session_id", "correlation_id"} {
		if v := q.Get(field); v != "" {
			opts.Filters[field] = v
		}
	}

	page, err := s.Orchestrator.List(r.Context(), opts)
	if err != nil {
		WriteFromKind(w, string(ingest.KindOf(err)), err)
		return
	}

	events := page.Events
	if expr := q.Get("filter"); expr != "" && s.Filters != nil {
		if prg, ok := s.Filters.Compile(expr); ok {
			filtered := make([]event.Event, 0, len(events))
			for _, e := range events {
				if s.Filters.Match(prg, e) {
					filtered = append(filtered, e)
				}
			}
			events = filtered
		}
		// unparseable filter: ignored, full page returned
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":       events,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	root, err := s.Orchestrator.Root(r.Context())
	if err != nil {
		WriteFromKind(w, string(ingest.KindOf(err)), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"root": root.Root})
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	eventID := strings.TrimPrefix(r.URL.Path, "/proof/")
	if eventID == "" {
		WriteBadRequest(w, "event id is required")
		return
	}

	p, err := s.Orchestrator.Proof(r.Context(), eventID)
	if err != nil {
		WriteFromKind(w, string(ingest.KindOf(err)), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleStream serves GET /events as Server-Sent Events: a meta frame, a
// frame per newly accepted event while the connection is open, a heartbeat
// comment roughly every HeartbeatEvery, and an error frame before closing
// on any fatal failure.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternal(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connID := uuid.NewString()
	writeSSE(w, "meta", map[string]interface{}{
		"version":      "1",
		"connected_at": s.now().UTC().Format(time.RFC3339),
		"connection_id": connID,
	})
	flusher.Flush()

	ch, unsubscribe := s.Broadcaster.Subscribe(r.Context())
	defer unsubscribe()

	heartbeat := s.HeartbeatEvery
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			canonical, err := e.CanonicalJSON()
			if err != nil {
				writeSSE(w, "error", map[string]interface{}{"code": "encode_error", "message": err.Error()})
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: audit_event\ndata: %s\n\n", canonical)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, eventName string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, data)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

const maxEventBodyBytes = 1 << 20 // 1 MiB

func readLimited(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("request body unreadable: %w", err)
	}
	if len(body) > maxEventBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxEventBodyBytes)
	}
	return body, nil
}

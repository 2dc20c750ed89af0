// Package event defines the wire shape of an audit event and the
// self-verification rule producers must satisfy to be accepted.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/talosprotocol/talos-audit-service/pkg/canonicalize"
)

const (
	DefaultSchemaID      = "talos.audit_event"
	DefaultSchemaVersion = "v1"
)

// Event is an immutable audit record. Every field is required at ingest
// except Resource; EventHash must equal the hex SHA-256 of the canonical
// serialization of every other field.
type Event struct {
	SchemaID      string                 `json:"schema_id"`
	SchemaVersion string                 `json:"schema_version"`
	EventID       string                 `json:"event_id"`
	Ts            string                 `json:"ts"`
	RequestID     string                 `json:"request_id"`
	SurfaceID     string                 `json:"surface_id"`
	Outcome       string                 `json:"outcome"`
	Principal     map[string]interface{} `json:"principal"`
	HTTP          map[string]interface{} `json:"http"`
	Meta          map[string]interface{} `json:"meta"`
	Resource      map[string]interface{} `json:"resource,omitempty"`
	EventHash     string                 `json:"event_hash"`
}

// ApplyDefaults fills SchemaID/SchemaVersion with their spec-defined
// defaults when the producer left them empty.
func (e *Event) ApplyDefaults() {
	if e.SchemaID == "" {
		e.SchemaID = DefaultSchemaID
	}
	if e.SchemaVersion == "" {
		e.SchemaVersion = DefaultSchemaVersion
	}
}

// RequiredFieldsPresent reports the first missing required field, or "" if
// all required fields (everything but Resource) are present.
func (e *Event) RequiredFieldsPresent() string {
	switch {
	case e.SchemaID == "":
		return "schema_id"
	case e.SchemaVersion == "":
		return "schema_version"
	case e.EventID == "":
		return "event_id"
	case e.Ts == "":
		return "ts"
	case e.RequestID == "":
		return "request_id"
	case e.SurfaceID == "":
		return "surface_id"
	case e.Outcome == "":
		return "outcome"
	case e.Principal == nil:
		return "principal"
	case e.HTTP == nil:
		return "http"
	case e.Meta == nil:
		return "meta"
	case e.EventHash == "":
		return "event_hash"
	}
	return ""
}

// fieldMap renders the event (minus event_hash) as a plain map suitable for
// canonicalize.Event.
func (e *Event) fieldMap() map[string]interface{} {
	m := map[string]interface{}{
		"schema_id":      e.SchemaID,
		"schema_version": e.SchemaVersion,
		"event_id":       e.EventID,
		"ts":             e.Ts,
		"request_id":     e.RequestID,
		"surface_id":     e.SurfaceID,
		"outcome":        e.Outcome,
		"principal":      e.Principal,
		"http":           e.HTTP,
		"meta":           e.Meta,
	}
	if e.Resource != nil {
		m["resource"] = e.Resource
	}
	return m
}

// CanonicalBytes returns the canonical serialization of the event with
// event_hash excluded — the same bytes the hash check and the Merkle leaf
// are derived from.
func (e *Event) CanonicalBytes() ([]byte, error) {
	return canonicalize.Event(e.fieldMap())
}

// RecomputeHash returns hex(sha256(canonicalize(event_without_event_hash))).
func (e *Event) RecomputeHash() (string, error) {
	b, err := e.CanonicalBytes()
	if err != nil {
		return "", fmt.Errorf("event: canonicalize: %w", err)
	}
	return canonicalize.Sha256Hex(b), nil
}

// VerifyHash recomputes the event's hash and compares it against the
// self-declared EventHash field.
func (e *Event) VerifyHash() (bool, error) {
	h, err := e.RecomputeHash()
	if err != nil {
		return false, err
	}
	return h == e.EventHash, nil
}

// CanonicalJSON renders the event as its canonical JSON form, the exact
// bytes SSE frames and list responses serve for each event.
func (e *Event) CanonicalJSON() ([]byte, error) {
	m := e.fieldMap()
	m["event_hash"] = e.EventHash
	return canonicalize.JCS(m)
}

// FromJSON decodes a raw request body into an Event, preserving unknown
// numeric precision via json.Number so canonicalization sees the producer's
// original digits rather than a float64 round-trip.
func FromJSON(data []byte) (*Event, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	e := &Event{}
	if v, ok := raw["schema_id"].(string); ok {
		e.SchemaID = v
	}
	if v, ok := raw["schema_version"].(string); ok {
		e.SchemaVersion = v
	}
	if v, ok := raw["event_id"].(string); ok {
		e.EventID = v
	}
	if v, ok := raw["ts"].(string); ok {
		e.Ts = v
	}
	if v, ok := raw["request_id"].(string); ok {
		e.RequestID = v
	}
	if v, ok := raw["surface_id"].(string); ok {
		e.SurfaceID = v
	}
	if v, ok := raw["outcome"].(string); ok {
		e.Outcome = v
	}
	if v, ok := raw["principal"].(map[string]interface{}); ok {
		e.Principal = v
	}
	if v, ok := raw["http"].(map[string]interface{}); ok {
		e.HTTP = v
	}
	if v, ok := raw["meta"].(map[string]interface{}); ok {
		e.Meta = v
	}
	if v, ok := raw["resource"].(map[string]interface{}); ok {
		e.Resource = v
	}
	if v, ok := raw["event_hash"].(string); ok {
		e.EventHash = v
	}
	return e, nil
}

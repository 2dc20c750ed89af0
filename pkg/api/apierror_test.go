package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/talosprotocol/talos-audit-service/pkg/api"
)

func TestWriteBadRequest_StructuredEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteBadRequest(w, "field is missing")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var body struct {
		Detail struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Detail.Code != "validation_error" {
		t.Errorf("expected code 'validation_error', got %q", body.Detail.Code)
	}
	if body.Detail.Message != "field is missing" {
		t.Errorf("expected message 'field is missing', got %q", body.Detail.Message)
	}
}

func TestWriteInternal_SanitizesError(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteInternal(w, errors.New("pq: connection refused to host=10.0.0.1"))

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Detail == "pq: connection refused to host=10.0.0.1" {
		t.Error("internal error details leaked to client")
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
}

func TestWriteMethodNotAllowed_SimpleEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteMethodNotAllowed(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Detail == "" {
		t.Error("expected non-empty simple detail")
	}
}

func TestWriteConflict(t *testing.T) {
	w := httptest.NewRecorder()
	api.WriteConflict(w, `event "e1" already exists`)

	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}

	var body struct {
		Detail struct {
			Code string `json:"code"`
		} `json:"detail"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Detail.Code != "conflict" {
		t.Errorf("expected code 'conflict', got %q", body.Detail.Code)
	}
}

func TestWriteFromKind_MapsToStatus(t *testing.T) {
	cases := []struct {
		kind   string
		status int
	}{
		{"validation", http.StatusBadRequest},
		{"conflict", http.StatusConflict},
		{"not_found", http.StatusNotFound},
		{"domain", http.StatusInternalServerError},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		api.WriteFromKind(w, c.kind, errors.New("boom"))
		if w.Code != c.status {
			t.Errorf("kind %q: expected status %d, got %d", c.kind, c.status, w.Code)
		}
	}
}

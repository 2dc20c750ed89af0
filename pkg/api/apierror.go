// Package api implements the HTTP surface over the ingest orchestrator.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// structuredDetail is the {code, message} form of the error envelope, used
// whenever the failure has a stable machine-readable code.
type structuredDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type structuredEnvelope struct {
	Detail structuredDetail `json:"detail"`
}

type simpleEnvelope struct {
	Detail string `json:"detail"`
}

// WriteStructuredError writes {"detail": {"code", "message"}} at the given
// status.
func WriteStructuredError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(structuredEnvelope{Detail: structuredDetail{Code: code, Message: message}})
}

// WriteSimpleError writes {"detail": "..."} at the given status — used for
// failures with no stable code, matching the simple-error shape.
func WriteSimpleError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(simpleEnvelope{Detail: detail})
}

// WriteBadRequest writes a 400 with a validation code.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteStructuredError(w, http.StatusBadRequest, "validation_error", message)
}

// WriteConflict writes a 409 for a duplicate event id.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteStructuredError(w, http.StatusConflict, "conflict", message)
}

// WriteNotFound writes a 404 for an unknown event id.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteStructuredError(w, http.StatusNotFound, "not_found", message)
}

// WriteMethodNotAllowed writes a 405 for an unsupported verb on a route.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteSimpleError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// WriteInternal writes a 500. err is logged but never reflected to the
// client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteSimpleError(w, http.StatusInternalServerError, "internal server error")
}

// WriteFromKind maps an ingest error Kind to the right status and envelope
// shape, so handlers never need their own status-code switch.
func WriteFromKind(w http.ResponseWriter, kind string, err error) {
	switch kind {
	case "validation":
		WriteBadRequest(w, err.Error())
	case "conflict":
		WriteConflict(w, err.Error())
	case "not_found":
		WriteNotFound(w, err.Error())
	default:
		WriteInternal(w, err)
	}
}

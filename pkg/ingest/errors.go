package ingest

import "fmt"

// Kind classifies an ingest-path error into the four kinds the HTTP layer
// maps to status codes, without resorting to string matching.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindDomain     Kind = "domain"
)

// ValidationError signals a structural or semantic input failure (hash
// mismatch, malformed cursor, missing required field). User-recoverable;
// HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Kind() string  { return string(KindValidation) }

// ConflictError signals that an event id was already accepted.
// User-recoverable by choosing a new id; HTTP 409.
type ConflictError struct {
	EventID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event %q already exists", e.EventID)
}
func (e *ConflictError) Kind() string { return string(KindConflict) }

// NotFoundError signals a proof or lookup for an unknown event. HTTP 404.
type NotFoundError struct {
	EventID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %q not found", e.EventID)
}
func (e *NotFoundError) Kind() string { return string(KindNotFound) }

// DomainError wraps any other domain failure, including adapter-level I/O
// errors the orchestrator does not catch but does classify. HTTP 500.
type DomainError struct {
	Op  string
	Err error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
func (e *DomainError) Kind() string { return string(KindDomain) }
func (e *DomainError) Unwrap() error { return e.Err }

// classified is satisfied by every error type above, letting callers map
// kind to HTTP status without type-switching on concrete types.
type classified interface {
	error
	Kind() string
}

var (
	_ classified = (*ValidationError)(nil)
	_ classified = (*ConflictError)(nil)
	_ classified = (*NotFoundError)(nil)
	_ classified = (*DomainError)(nil)
)

// KindOf returns the Kind of err if it implements classified, or
// KindDomain for any other error (an unclassified failure is always
// treated as a 500, never silently downgraded to something recoverable).
func KindOf(err error) Kind {
	if c, ok := err.(classified); ok {
		return Kind(c.Kind())
	}
	return KindDomain
}

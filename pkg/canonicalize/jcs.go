// Package canonicalize produces RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for deterministic hashing of audit events.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with the standard library (so struct tags and
// json.Marshaler implementations are respected), then passed through a real
// JCS transform rather than a hand-rolled approximation — encoding/json's
// map-key sort is UTF-8 byte order, which diverges from RFC 8785's required
// UTF-16 code-unit order once keys contain characters outside the basic
// multilingual plane, and its float formatting does not match ECMA-262 in
// all cases.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return canonical, nil
}

// JCSString returns the JCS canonical form of v as a string.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CanonicalHash returns the lowercase hex SHA-256 digest of the canonical
// JSON representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return Sha256Hex(b), nil
}

// Sha256 computes the raw SHA-256 digest of data.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Sha256Hex computes the lowercase hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Event canonicalizes an event field map for hash verification, dropping
// the event_hash field itself — the field being verified cannot be part of
// its own preimage. encoding/json.Marshal, which JCS calls first, already
// errors on NaN/Inf float64 values (RFC 8785 cannot represent them), so
// Event does not duplicate that check against the canonical bytes — doing
// so as a substring scan would also reject a legitimate string field whose
// value happens to contain the text "NaN" or "Infinity".
func Event(fields map[string]interface{}) ([]byte, error) {
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k == "event_hash" {
			continue
		}
		clean[k] = v
	}
	return JCS(clean)
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// eventSchemaJSON describes the structural shape of talos.audit_event/v1,
// checked before canonicalization so a missing or mistyped field is
// reported with a schema pointer rather than a generic "missing field"
// message.
const eventSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["event_id", "ts", "request_id", "surface_id", "outcome", "principal", "http", "meta", "event_hash"],
	"properties": {
		"schema_id": {"type": "string"},
		"schema_version": {"type": "string"},
		"event_id": {"type": "string", "minLength": 1},
		"ts": {"type": "string", "minLength": 1},
		"request_id": {"type": "string", "minLength": 1},
		"surface_id": {"type": "string", "minLength": 1},
		"outcome": {"type": "string", "minLength": 1},
		"principal": {"type": "object"},
		"http": {"type": "object"},
		"meta": {"type": "object"},
		"resource": {"type": "object"},
		"event_hash": {"type": "string", "minLength": 64, "maxLength": 64}
	}
}`

var (
	schemaOnce    sync.Once
	compiledEvent *jsonschema.Schema
	schemaErr     error
)

func eventSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("talos-audit-event.json", bytes.NewReader([]byte(eventSchemaJSON))); err != nil {
			schemaErr = fmt.Errorf("api: add schema resource: %w", err)
			return
		}
		compiled, err := c.Compile("talos-audit-event.json")
		if err != nil {
			schemaErr = fmt.Errorf("api: compile schema: %w", err)
			return
		}
		compiledEvent = compiled
	})
	return compiledEvent, schemaErr
}

// ValidateEventBody structurally validates a raw event body against the
// talos.audit_event/v1 schema before canonicalization runs. Returns a
// human-readable description of the first schema violation, or "" if the
// body is structurally sound.
func ValidateEventBody(body []byte) (string, error) {
	schema, err := eventSchema()
	if err != nil {
		return "", err
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "invalid JSON body", nil
	}

	if err := schema.Validate(doc); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

package event

import "testing"

func buildValid(t *testing.T) *Event {
	t.Helper()
	e := &Event{
		EventID:   "e1",
		Ts:        "2026-01-01T00:00:00Z",
		RequestID: "r1",
		SurfaceID: "s1",
		Outcome:   "success",
		Principal: map[string]interface{}{"id": "p1"},
		HTTP:      map[string]interface{}{"path": "/x"},
		Meta:      map[string]interface{}{},
	}
	e.ApplyDefaults()
	h, err := e.RecomputeHash()
	if err != nil {
		t.Fatalf("recompute hash: %v", err)
	}
	e.EventHash = h
	return e
}

func TestApplyDefaults(t *testing.T) {
	e := &Event{}
	e.ApplyDefaults()
	if e.SchemaID != DefaultSchemaID || e.SchemaVersion != DefaultSchemaVersion {
		t.Fatalf("defaults not applied: %+v", e)
	}
}

func TestRequiredFieldsPresent(t *testing.T) {
	e := buildValid(t)
	if missing := e.RequiredFieldsPresent(); missing != "" {
		t.Fatalf("expected no missing fields, got %q", missing)
	}

	e2 := &Event{}
	e2.ApplyDefaults()
	if missing := e2.RequiredFieldsPresent(); missing != "event_id" {
		t.Fatalf("expected event_id missing first, got %q", missing)
	}
}

func TestVerifyHash_Valid(t *testing.T) {
	e := buildValid(t)
	ok, err := e.VerifyHash()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected hash to verify")
	}
}

func TestVerifyHash_Mismatch(t *testing.T) {
	e := buildValid(t)
	e.EventHash = "0000000000000000000000000000000000000000000000000000000000000000"
	ok, err := e.VerifyHash()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected hash mismatch to be detected")
	}
}

func TestFromJSON_RoundTrip(t *testing.T) {
	e := buildValid(t)
	raw, err := e.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := FromJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := parsed.VerifyHash()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("round-tripped event failed hash verification")
	}
}

package api

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
)

// FilterEvaluator compiles and caches CEL boolean predicates evaluated
// per-event against meta/principal/http. An unparseable or unknown
// expression is treated as "ignore the filter", not as a request error,
// matching the ignore-unknown-filters behavior this endpoint specifies.
type FilterEvaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewFilterEvaluator builds the CEL environment exposing meta/principal/
// http/outcome/surface_id as predicate variables.
func NewFilterEvaluator() (*FilterEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("meta", cel.DynType),
		cel.Variable("principal", cel.DynType),
		cel.Variable("http", cel.DynType),
		cel.Variable("outcome", cel.StringType),
		cel.Variable("surface_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("api: cel env: %w", err)
	}
	return &FilterEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile returns a compiled program for expr, or (nil, false) if expr does
// not compile — the caller's contract is to ignore the filter in that case
// rather than fail the request.
func (f *FilterEvaluator) Compile(expr string) (cel.Program, bool) {
	if expr == "" {
		return nil, false
	}

	f.mu.RLock()
	prg, hit := f.cache[expr]
	f.mu.RUnlock()
	if hit {
		return prg, true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if prg, hit = f.cache[expr]; hit {
		return prg, true
	}

	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, false
	}
	p, err := f.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, false
	}
	f.cache[expr] = p
	return p, true
}

// Match evaluates a compiled program against e, treating any runtime
// evaluation error or non-bool result as "does not match" rather than
// propagating a request failure.
func (f *FilterEvaluator) Match(prg cel.Program, e event.Event) bool {
	out, _, err := prg.Eval(map[string]interface{}{
		"meta":       e.Meta,
		"principal":  e.Principal,
		"http":       e.HTTP,
		"outcome":    e.Outcome,
		"surface_id": e.SurfaceID,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}

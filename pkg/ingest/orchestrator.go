// Package ingest wires event validation, the Merkle accumulator, the store
// port, and the live broadcaster into the single write path every audit
// event passes through.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
	"github.com/talosprotocol/talos-audit-service/pkg/merkle"
	"github.com/talosprotocol/talos-audit-service/pkg/observability"
	"github.com/talosprotocol/talos-audit-service/pkg/store"
)

// maxListLimit bounds the page size List will honor; defaultListLimit is
// used when the caller doesn't specify one at all.
const (
	maxListLimit     = 200
	defaultListLimit = 50
)

// Publisher is the narrow interface the orchestrator needs from the
// broadcaster, so this package does not import pkg/broadcast directly.
type Publisher interface {
	Publish(e event.Event)
}

// RootCache is the narrow interface the orchestrator needs from the root
// cache. A nil RootCache disables caching entirely.
type RootCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, root string)
	Invalidate(ctx context.Context)
}

// RootView is the response shape for the current accumulator root.
type RootView struct {
	Root   string `json:"root"`
	Height int    `json:"height"`
	Count  int    `json:"count"`
}

// RehydrationReport summarizes what startup recovery found when replaying
// the store into a fresh Merkle tree.
type RehydrationReport struct {
	EventsLoaded  int
	HashFailures  []string // event ids whose stored event_hash failed re-verification
}

// Orchestrator is the single write path for ingest and the read path for
// root/proof/list. All mutating state (the Merkle tree) is guarded by mu;
// the store and broadcaster have their own concurrency safety.
type Orchestrator struct {
	mu        sync.Mutex
	tree      *merkle.Tree
	store     store.Store
	publisher Publisher
	rootCache RootCache
	logger    *slog.Logger
	obs       *observability.Provider
}

// NewOrchestrator builds an orchestrator and rehydrates the Merkle tree from
// the store's full history, oldest first. It pages backwards through
// Store.List (the port's only traversal direction) and reverses before
// replaying, so the tree is built in original insertion order. obs may be
// nil, in which case Ingest/Proof/List skip tracing and metrics entirely.
func NewOrchestrator(ctx context.Context, s store.Store, publisher Publisher, rootCache RootCache, logger *slog.Logger, obs *observability.Provider) (*Orchestrator, *RehydrationReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var all []event.Event
	cursor := ""
	for {
		page, err := s.List(ctx, store.ListOptions{Before: cursor, Limit: 500})
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: rehydrate list: %w", err)
		}
		all = append(all, page.Events...)
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	// all is newest-first (the store's only order); reverse to oldest-first
	// so leaves land in original append order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	report := &RehydrationReport{EventsLoaded: len(all)}
	inputs := make([]merkle.LeafInput, 0, len(all))
	for _, e := range all {
		ok, err := e.VerifyHash()
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: rehydrate verify %s: %w", e.EventID, err)
		}
		if !ok {
			report.HashFailures = append(report.HashFailures, e.EventID)
			logger.Error("rehydration hash mismatch, excluding from accumulator", "event_id", e.EventID)
			continue
		}
		hashBytes, err := hex.DecodeString(e.EventHash)
		if err != nil || len(hashBytes) != 32 {
			report.HashFailures = append(report.HashFailures, e.EventID)
			logger.Error("rehydration malformed hash, excluding from accumulator", "event_id", e.EventID)
			continue
		}
		var h [32]byte
		copy(h[:], hashBytes)
		inputs = append(inputs, merkle.LeafInput{EventID: e.EventID, Hash: h})
	}

	tree, err := merkle.InitializeFrom(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: rehydrate build tree: %w", err)
	}

	logger.Info("rehydration complete", "events_loaded", report.EventsLoaded, "hash_failures", len(report.HashFailures))

	return &Orchestrator{
		tree:      tree,
		store:     s,
		publisher: publisher,
		rootCache: rootCache,
		logger:    logger,
		obs:       obs,
	}, report, nil
}

// trackOperation starts an observability span/metric set for name, or
// returns a no-op finish func if no provider is configured.
func (o *Orchestrator) trackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if o.obs == nil {
		return ctx, func(error) {}
	}
	return o.obs.TrackOperation(ctx, name, attrs...)
}

// Ingest validates, appends, accumulates, and broadcasts one event. The
// caller supplies a fully populated event (ApplyDefaults already run); this
// is the sole path that mutates the Merkle tree, serialized by mu so the
// accumulator, the store, and the broadcast always observe a single
// consistent order of acceptance.
func (o *Orchestrator) Ingest(ctx context.Context, e event.Event) (result event.Event, err error) {
	ctx, finish := o.trackOperation(ctx, "ingest.accept", observability.IngestOperation(e.EventID, e.SurfaceID, e.Outcome)...)
	defer func() { finish(err) }()

	if missing := e.RequiredFieldsPresent(); missing != "" {
		return event.Event{}, &ValidationError{Message: fmt.Sprintf("missing required field %q", missing)}
	}

	ok, verifyErr := e.VerifyHash()
	if verifyErr != nil {
		return event.Event{}, &ValidationError{Message: fmt.Sprintf("canonicalize: %v", verifyErr)}
	}
	if !ok {
		return event.Event{}, &ValidationError{Message: "event_hash mismatch: does not match canonical event body"}
	}

	hashBytes, hexErr := hex.DecodeString(e.EventHash)
	if hexErr != nil || len(hashBytes) != 32 {
		return event.Event{}, &ValidationError{Message: "event_hash is not a valid 32-byte hex digest"}
	}
	var leafHash [32]byte
	copy(leafHash[:], hashBytes)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tree.Has(e.EventID) {
		return event.Event{}, &ConflictError{EventID: e.EventID}
	}

	if appendErr := o.store.Append(ctx, e); appendErr != nil {
		return event.Event{}, &DomainError{Op: "store.Append", Err: appendErr}
	}

	if _, addErr := o.tree.Add(e.EventID, leafHash); addErr != nil {
		// The store already accepted this id (or one with the same hash);
		// the tree is the source of truth for duplicates, so this should
		// not happen given the Has check above, but is surfaced rather
		// than swallowed if storage and accumulator ever diverge.
		return event.Event{}, &DomainError{Op: "merkle.Add", Err: addErr}
	}

	if o.rootCache != nil {
		o.rootCache.Invalidate(ctx)
	}
	if o.publisher != nil {
		o.publisher.Publish(e)
	}

	return e, nil
}

// Root returns the current accumulator root, consulting the cache first.
func (o *Orchestrator) Root(ctx context.Context) (RootView, error) {
	if o.rootCache != nil {
		if cached, ok := o.rootCache.Get(ctx); ok {
			o.mu.Lock()
			height, count := o.treeShape()
			o.mu.Unlock()
			return RootView{Root: cached, Height: height, Count: count}, nil
		}
	}

	o.mu.Lock()
	root := o.tree.Root()
	height, count := o.treeShape()
	o.mu.Unlock()

	if o.rootCache != nil && root != "" {
		o.rootCache.Set(ctx, root)
	}
	return RootView{Root: root, Height: height, Count: count}, nil
}

func (o *Orchestrator) treeShape() (height, count int) {
	// Height and count are cheap to recompute under the same lock that
	// guards tree mutation; exposed here rather than adding new Tree
	// accessors purely for a response DTO.
	count = o.tree.Count()
	height = o.tree.Height()
	return
}

// Proof returns the inclusion proof for eventID against the current root.
func (o *Orchestrator) Proof(ctx context.Context, eventID string) (result merkle.ProofView, err error) {
	ctx, finish := o.trackOperation(ctx, "proof.lookup", observability.AttrEventID.String(eventID))
	defer func() { finish(err) }()

	o.mu.Lock()
	p, proofErr := o.tree.Proof(eventID)
	o.mu.Unlock()
	if proofErr != nil {
		return merkle.ProofView{}, &NotFoundError{EventID: eventID}
	}

	observability.AddSpanEvent(ctx, "proof.found", observability.ProofOperation(eventID, p.Root, p.Height, p.Index)...)
	return p, nil
}

// List delegates to the store, clamping the caller's requested page size to
// [1, 200] regardless of what was asked for. Filter matching beyond the
// equality push-down (CEL expressions) is applied by the API layer on the
// returned page, keeping the store port free of an expression language
// dependency.
func (o *Orchestrator) List(ctx context.Context, opts store.ListOptions) (result store.EventPage, err error) {
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultListLimit
	case opts.Limit > maxListLimit:
		opts.Limit = maxListLimit
	}

	ctx, finish := o.trackOperation(ctx, "list.query", observability.AttrListLimit.Int(opts.Limit))
	defer func() { finish(err) }()

	page, listErr := o.store.List(ctx, opts)
	if listErr != nil {
		if listErr == store.ErrInvalidCursor {
			return store.EventPage{}, &ValidationError{Message: "invalid cursor"}
		}
		return store.EventPage{}, &DomainError{Op: "store.List", Err: listErr}
	}

	observability.AddSpanEvent(ctx, "list.completed", observability.ListOperation(opts.Limit, len(page.Events))...)
	return page, nil
}

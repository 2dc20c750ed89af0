// Package broadcast fans out accepted events to live SSE subscribers.
// Single-replica only: a second instance would need a shared pub/sub layer
// behind the same Broadcaster interface.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/talosprotocol/talos-audit-service/pkg/event"
	"github.com/talosprotocol/talos-audit-service/pkg/observability"
)

const defaultQueueSize = 100

// Broadcaster manages live subscriptions and publishes accepted events to
// each one. Each subscriber gets its own bounded channel; a slow consumer
// has events dropped for it alone rather than blocking the publisher or
// other subscribers.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan event.Event]struct{}
	queueSize   int
	logger      *slog.Logger
	obs         *observability.Provider
}

// New returns a Broadcaster with the given per-subscriber queue capacity.
// A non-positive size falls back to 100. obs may be nil, in which case
// Publish skips tracing and metrics entirely.
func New(queueSize int, logger *slog.Logger, obs *observability.Provider) *Broadcaster {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[chan event.Event]struct{}),
		queueSize:   queueSize,
		logger:      logger,
		obs:         obs,
	}
}

// Subscribe registers a new subscriber and returns its event channel along
// with an unsubscribe function the caller must invoke when done (typically
// deferred in the SSE handler on request context cancellation).
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan event.Event, func()) {
	ch := make(chan event.Event, b.queueSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish delivers e to every current subscriber. The send loop runs under
// mu, the same lock unsubscribe holds while closing a channel — sends and
// closes are never in flight on the same channel concurrently, which is
// what keeps a send from panicking on a channel a disconnecting subscriber
// just closed. This is safe only because each send is a non-blocking
// select/default: a full or blocked subscriber is dropped in O(1) rather
// than held up, so the lock is never held waiting on a slow reader.
func (b *Broadcaster) Publish(e event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, finish := b.trackOperation(context.Background(), len(b.subscribers))
	defer finish(nil)

	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			observability.AddSpanEvent(ctx, "subscriber queue full", observability.AttrEventID.String(e.EventID))
			b.logger.Warn("subscriber queue full, dropping event", "queue_size", b.queueSize, "event_id", e.EventID)
		}
	}
}

func (b *Broadcaster) trackOperation(ctx context.Context, subscriberCount int) (context.Context, func(error)) {
	if b.obs == nil {
		return ctx, func(error) {}
	}
	return b.obs.TrackOperation(ctx, "broadcast.publish", observability.BroadcastOperation(subscriberCount)...)
}

// SubscriberCount reports the number of live subscribers, for diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

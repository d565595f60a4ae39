// ABOUTME: In-memory fan-out event broadcaster for cross-client awareness
// ABOUTME: Publishes chat events to all subscribers of an audience key

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/shopdesk/internal/metrics"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub for chat events. Subscribers
// register for an audience (the admin collective or one user) and receive
// events as they are emitted. Delivery is at-most-once and best-effort: if
// no subscriber is present at emission time the event is dropped, and
// clients recover by re-fetching state over HTTP on reconnect.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Audience]map[string]chan *Event // audience -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[Audience]map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events addressed to the given
// audience. Returns a channel that receives events and a subscription ID for
// later unsubscription. The subscription is automatically cleaned up when
// ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, audience Audience) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[audience]; !ok {
		b.subscribers[audience] = make(map[string]chan *Event)
	}
	b.subscribers[audience][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "audience", audience, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(audience, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the given audience.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(audience Audience, event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.send(b.subscribers[audience], audience, event)
}

// PublishAll sends an event to every subscriber of every audience.
// Used for global announcements such as admin presence changes.
func (b *Broadcaster) PublishAll(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for audience, subs := range b.subscribers {
		b.send(subs, audience, event)
	}
}

// send delivers without blocking. The caller holds the read lock for the
// duration, so Unsubscribe and Close cannot close a channel mid-send.
func (b *Broadcaster) send(subs map[string]chan *Event, audience Audience, event *Event) {
	for _, ch := range subs {
		select {
		case ch <- event:
			metrics.EventsPublished.WithLabelValues(event.Name).Inc()
		default:
			// Subscriber channel full, drop the event for this subscriber
			metrics.EventsDropped.WithLabelValues(event.Name).Inc()
			b.logger.Debug("dropped event for slow subscriber",
				"audience", audience,
				"event", event.Name)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(audience Audience, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[audience]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty audience entries
	if len(subs) == 0 {
		delete(b.subscribers, audience)
	}

	b.logger.Debug("subscriber removed", "audience", audience, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for audience, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, audience)
	}

	b.logger.Debug("broadcaster closed")
}

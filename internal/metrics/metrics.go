// ABOUTME: Prometheus collectors for the shopdesk process
// ABOUTME: Registered via promauto on the default registry, served at /metrics

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesIngested counts messages accepted by the ingestion pipeline,
	// partitioned by sender role.
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopdesk",
		Name:      "messages_ingested_total",
		Help:      "Messages accepted and persisted, by sender role.",
	}, []string{"sender"})

	// ConversationsCreated counts lazily created conversations.
	ConversationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopdesk",
		Name:      "conversations_created_total",
		Help:      "Conversations created on first contact.",
	})

	// EventsPublished counts events delivered to subscriber channels.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopdesk",
		Name:      "events_published_total",
		Help:      "Broadcast events delivered to subscribers, by event name.",
	}, []string{"event"})

	// EventsDropped counts events dropped for slow or absent subscribers.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopdesk",
		Name:      "events_dropped_total",
		Help:      "Broadcast events dropped because a subscriber channel was full.",
	}, []string{"event"})

	// LiveConnections tracks currently open websocket connections by role.
	LiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shopdesk",
		Name:      "live_connections",
		Help:      "Open websocket connections, by declared role.",
	}, []string{"role"})

	// UploadsRejected counts attachment uploads rejected before storage.
	UploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopdesk",
		Name:      "uploads_rejected_total",
		Help:      "Attachment uploads rejected, by reason (size, type).",
	}, []string{"reason"})
)

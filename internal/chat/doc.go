// Package chat implements the realtime chat core: conversation lifecycle,
// message ingestion, read-state reconciliation, presence and event fan-out.
//
// # Service
//
// The Service coordinates every chat mutation:
//
//	svc := chat.New(store, broadcaster, logger)
//
// Key operations:
//
//   - GetOrCreate(ctx, userID): lazily create the user's conversation,
//     seeded with an admin welcome message
//   - Append(ctx, req): validate, normalize and persist a message, update
//     rollups, emit events
//   - MarkRead(ctx, conversationID): reconcile read state for the admin view
//   - SetPresence(ctx, who, id, online): flip online flags and announce
//   - NotifyTyping(from, chatID, userID, typing): forward transient typing
//     indicators
//
// # Ordering
//
// Within one call the store commit always precedes event emission
// (write-then-notify). No ordering is guaranteed between independent
// concurrent requests touching the same conversation: rollup fields are
// last-write-wins and the log reflects acceptance order at the store.
//
// # Broadcasting
//
// The Broadcaster fans events out to audiences: the admin collective
// ("admin") and one audience per user ("user:<id>"). Delivery is
// at-most-once with no persistence of undelivered events; a client that
// misses events re-fetches conversation state over HTTP on reconnect.
// Subscriber membership is owned by the connection that created it; no
// other component adds or removes subscriptions.
package chat

// Package store provides persistent storage for shopdesk using SQLite.
//
// # Data Models
//
//   - User: customer accounts with presence (online flag, last-seen)
//   - Conversation: one chat thread per user with denormalized rollups
//     (last message, last message time, unread count, presence flags)
//   - Message: a single log entry, immutable except for its read flag
//   - Item: catalog entries moderated by the admin
//   - Admin: the single moderator account
//
// # Conversation Invariants
//
// Exactly one conversation exists per user, enforced by a UNIQUE constraint
// on conversations.user_id. Racing creators lose with
// ErrDuplicateConversation and retry as a read; the conflict never escapes
// the chat service.
//
// AppendMessage commits the message insert and the rollup update in one
// transaction: a user-authored message increments unread_count, an
// admin-authored one resets it to zero. MarkConversationRead flips unread
// user messages to read and zeroes the counter, so after any reconciliation
// unread_count equals the number of unread user-authored messages.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open. Timestamps are stored as
// RFC 3339 text in UTC.
package store

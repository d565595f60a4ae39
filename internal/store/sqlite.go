// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas ride the DSN so every pooled connection gets them: WAL for
	// concurrent readers, enforced foreign keys, and a busy timeout so a
	// competing writer waits for the lock instead of failing with
	// SQLITE_BUSY before constraint checks can run.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL COLLATE NOCASE UNIQUE,
			online     INTEGER NOT NULL DEFAULT 0,
			last_seen  DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen DESC);

		CREATE TABLE IF NOT EXISTS conversations (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL UNIQUE,
			user_name         TEXT NOT NULL,
			last_message      TEXT NOT NULL DEFAULT '',
			last_message_time DATETIME NOT NULL,
			unread_count      INTEGER NOT NULL DEFAULT 0,
			user_online       INTEGER NOT NULL DEFAULT 0,
			admin_online      INTEGER NOT NULL DEFAULT 0,
			active            INTEGER NOT NULL DEFAULT 1,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL,

			CHECK (unread_count >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_last_message_time
			ON conversations(last_message_time DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender          TEXT NOT NULL,
			body            TEXT NOT NULL,
			read            INTEGER NOT NULL DEFAULT 0,
			file_url        TEXT,
			file_name       TEXT,
			file_type       TEXT,
			file_size       INTEGER,
			created_at      DATETIME NOT NULL,

			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			CHECK (sender IN ('user', 'admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id);

		CREATE TABLE IF NOT EXISTS items (
			id         TEXT PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			price      INTEGER NOT NULL,
			image      TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'available',
			sent_to    TEXT,
			sent_at    DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (status IN ('available', 'sold_out')),
			CHECK (price > 0)
		);

		CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
		CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at DESC);

		CREATE TABLE IF NOT EXISTS admins (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password   TEXT NOT NULL,
			name       TEXT NOT NULL,
			last_login DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// CreateConversation inserts a conversation and, when seed is non-nil, its
// first message in a single transaction. If a conversation already exists
// for the same user it returns ErrDuplicateConversation; the caller is
// expected to retry as a read.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation, seed *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (
			id, user_id, user_name, last_message, last_message_time,
			unread_count, user_online, admin_online, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		conv.ID,
		conv.UserID,
		conv.UserName,
		conv.LastMessage,
		formatTime(conv.LastMessageTime),
		conv.UnreadCount,
		conv.UserOnline,
		conv.AdminOnline,
		conv.Active,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	if seed != nil {
		if err := insertMessage(ctx, tx, seed); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "user_id", conv.UserID)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMessage(ctx context.Context, ex execer, msg *Message) error {
	var fileURL, fileName, fileType sql.NullString
	var fileSize sql.NullInt64
	if msg.Attachment != nil {
		fileURL = sql.NullString{String: msg.Attachment.URL, Valid: true}
		fileName = sql.NullString{String: msg.Attachment.Name, Valid: true}
		fileType = sql.NullString{String: msg.Attachment.Type, Valid: true}
		fileSize = sql.NullInt64{Int64: msg.Attachment.Size, Valid: true}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, sender, body, read,
			file_url, file_name, file_type, file_size, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		msg.Sender,
		msg.Body,
		msg.Read,
		fileURL,
		fileName,
		fileType,
		fileSize,
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// conversationColumns is the SELECT list shared by conversation queries
const conversationColumns = `
	id, user_id, user_name, last_message, last_message_time,
	unread_count, user_online, admin_online, active, created_at, updated_at
`

func scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var lastMsgTimeStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.UserName,
		&conv.LastMessage,
		&lastMsgTimeStr,
		&conv.UnreadCount,
		&conv.UserOnline,
		&conv.AdminOnline,
		&conv.Active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if conv.LastMessageTime, err = parseTime(lastMsgTimeStr); err != nil {
		return nil, fmt.Errorf("parsing last_message_time: %w", err)
	}
	if conv.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// GetConversationByUserID retrieves the conversation owned by the given user.
// This uses the UNIQUE index on user_id.
func (s *SQLiteStore) GetConversationByUserID(ctx context.Context, userID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ?`, userID)
	return scanConversation(row)
}

// ListConversations returns all active conversations ordered by most recent
// activity. The user row is joined so summaries carry live presence; rows
// whose user is gone fall back to the conversation's own user_name snapshot.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id,
		       COALESCE(u.name, c.user_name),
		       c.last_message, c.last_message_time, c.unread_count,
		       COALESCE(u.online, 0),
		       COALESCE(u.last_seen, c.updated_at)
		FROM conversations c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.active = 1
		ORDER BY c.last_message_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var sum ConversationSummary
		var lastMsgTimeStr, lastSeenStr string
		if err := rows.Scan(
			&sum.ID,
			&sum.UserID,
			&sum.UserName,
			&sum.LastMessage,
			&lastMsgTimeStr,
			&sum.UnreadCount,
			&sum.Online,
			&lastSeenStr,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}
		if sum.LastMessageTime, err = parseTime(lastMsgTimeStr); err != nil {
			return nil, fmt.Errorf("parsing last_message_time: %w", err)
		}
		if sum.LastSeen, err = parseTime(lastSeenStr); err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// GetMessages returns a conversation's log in acceptance order.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	// Confirm the conversation exists so callers can distinguish
	// "no messages" from "no conversation".
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, body, read,
		       file_url, file_name, file_type, file_size, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY rowid
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAtStr string
		var fileURL, fileName, fileType sql.NullString
		var fileSize sql.NullInt64
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Body,
			&msg.Read,
			&fileURL,
			&fileName,
			&fileType,
			&fileSize,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if fileURL.Valid {
			msg.Attachment = &Attachment{
				URL:  fileURL.String,
				Name: fileName.String,
				Type: fileType.String,
				Size: fileSize.Int64,
			}
		}
		if msg.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// AppendMessage inserts a message and updates the owning conversation's
// rollup fields in a single transaction. A user-authored message increments
// unread_count; an admin-authored message resets it to zero.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message, lastMessage string, lastMessageTime time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Rollups first: a zero-row update means the conversation does not
	// exist, which must surface as ErrNotFound rather than the message
	// insert's foreign key violation.
	var res sql.Result
	if msg.Sender == SenderAdmin {
		res, err = tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message = ?, last_message_time = ?, unread_count = 0, updated_at = ?
			WHERE id = ?
		`, lastMessage, formatTime(lastMessageTime), formatTime(lastMessageTime), msg.ConversationID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message = ?, last_message_time = ?, unread_count = unread_count + 1, updated_at = ?
			WHERE id = ?
		`, lastMessage, formatTime(lastMessageTime), formatTime(lastMessageTime), msg.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("updating conversation rollups: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rollup update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender", msg.Sender)
	return nil
}

// MarkConversationRead flags all unread user-authored messages as read and
// returns how many were flagged. When any were flagged the conversation's
// unread_count is reset to zero. Calling it again with no new messages is a
// no-op returning zero.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("checking conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET read = 1
		WHERE conversation_id = ? AND sender = 'user' AND read = 0
	`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting marked messages: %w", err)
	}

	if marked > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE conversations SET unread_count = 0 WHERE id = ?
		`, conversationID); err != nil {
			return 0, fmt.Errorf("resetting unread count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing read state: %w", err)
	}

	return int(marked), nil
}

// SetConversationUserOnline updates the user_online flag on the user's conversation
func (s *SQLiteStore) SetConversationUserOnline(ctx context.Context, userID string, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET user_online = ? WHERE user_id = ?`, online, userID)
	if err != nil {
		return fmt.Errorf("updating user_online: %w", err)
	}
	return nil
}

// SetConversationsAdminOnline updates the admin_online flag on every conversation
func (s *SQLiteStore) SetConversationsAdminOnline(ctx context.Context, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET admin_online = ?`, online)
	if err != nil {
		return fmt.Errorf("updating admin_online: %w", err)
	}
	return nil
}

// DeactivateConversation soft-deletes the conversation owned by the given
// user. The message log is retained.
func (s *SQLiteStore) DeactivateConversation(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET active = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deactivating conversation: %w", err)
	}
	return nil
}

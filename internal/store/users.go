// ABOUTME: User persistence methods for the SQLite store
// ABOUTME: Covers account CRUD plus the presence fields shared with the chat core

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateUser inserts a new user. Names are unique case-insensitively;
// a taken name returns ErrDuplicateUserName.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, online, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Name,
		user.Online,
		formatTime(user.LastSeen),
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUserName
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "name", user.Name)
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var lastSeenStr, createdAtStr string

	err := row.Scan(&user.ID, &user.Name, &user.Online, &lastSeenStr, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if user.LastSeen, err = parseTime(lastSeenStr); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, online, last_seen, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByName retrieves a user by name, case-insensitively.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, online, last_seen, created_at FROM users WHERE name = ? COLLATE NOCASE`, name)
	return scanUser(row)
}

// ListUsers returns all users, most recently seen first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, online, last_seen, created_at FROM users ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var lastSeenStr, createdAtStr string
		if err := rows.Scan(&user.ID, &user.Name, &user.Online, &lastSeenStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		if user.LastSeen, err = parseTime(lastSeenStr); err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		if user.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// UpdateUserName renames a user. Returns ErrNotFound if the user doesn't
// exist and ErrDuplicateUserName if the name is taken.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUserName
		}
		return fmt.Errorf("updating user name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking user update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user row. The user's conversation is left in place;
// callers soft-deactivate it separately.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking user delete: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserPresence updates a user's online flag and last-seen timestamp.
func (s *SQLiteStore) SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET online = ?, last_seen = ? WHERE id = ?`,
		online, formatTime(lastSeen), id)
	if err != nil {
		return fmt.Errorf("updating user presence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking presence update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

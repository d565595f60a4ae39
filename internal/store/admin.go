// ABOUTME: Admin account persistence methods for the SQLite store
// ABOUTME: Seeding, lookup by email, profile updates and login tracking

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureAdmin inserts the admin account if no row with its email exists.
// Used at startup to seed the configured moderator credentials.
func (s *SQLiteStore) EnsureAdmin(ctx context.Context, admin *Admin) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password, name, last_login)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`,
		admin.ID,
		admin.Email,
		admin.Password,
		admin.Name,
		formatTime(admin.LastLogin),
	)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	return nil
}

func scanAdmin(row *sql.Row) (*Admin, error) {
	var admin Admin
	var lastLoginStr string

	err := row.Scan(&admin.ID, &admin.Email, &admin.Password, &admin.Name, &lastLoginStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning admin: %w", err)
	}

	if admin.LastLogin, err = parseTime(lastLoginStr); err != nil {
		return nil, fmt.Errorf("parsing last_login: %w", err)
	}
	return &admin, nil
}

// GetAdmin retrieves the admin account by ID.
func (s *SQLiteStore) GetAdmin(ctx context.Context, id string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password, name, last_login FROM admins WHERE id = ?`, id)
	return scanAdmin(row)
}

// GetAdminByEmail retrieves the admin account by email, case-insensitively.
func (s *SQLiteStore) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password, name, last_login FROM admins WHERE email = ? COLLATE NOCASE`, email)
	return scanAdmin(row)
}

// UpdateAdminProfile updates the admin's display name and email.
// Empty arguments leave the corresponding field unchanged.
func (s *SQLiteStore) UpdateAdminProfile(ctx context.Context, id, name, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE admins
		SET name  = CASE WHEN ? != '' THEN ? ELSE name END,
		    email = CASE WHEN ? != '' THEN ? ELSE email END
		WHERE id = ?
	`, name, name, email, email, id)
	if err != nil {
		return fmt.Errorf("updating admin profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking admin update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAdminLogin records a successful admin login.
func (s *SQLiteStore) TouchAdminLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE admins SET last_login = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating admin last_login: %w", err)
	}
	return nil
}

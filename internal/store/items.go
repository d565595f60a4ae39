// ABOUTME: Item catalog persistence methods for the SQLite store
// ABOUTME: CRUD plus the send-to-user state transition

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const itemColumns = `
	i.id, i.code, i.price, i.image, i.status, i.sent_to, u.name, i.sent_at,
	i.created_at, i.updated_at
`

// CreateItem inserts a new catalog item. A taken code returns ErrDuplicateItemCode.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, code, price, image, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.Code,
		item.Price,
		item.Image,
		item.Status,
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateItemCode
		}
		return fmt.Errorf("inserting item: %w", err)
	}

	s.logger.Debug("created item", "id", item.ID, "code", item.Code)
	return nil
}

func scanItemRow(scan func(dest ...any) error) (*Item, error) {
	var item Item
	var sentTo, sentToName, sentAtStr sql.NullString
	var createdAtStr, updatedAtStr string

	err := scan(
		&item.ID,
		&item.Code,
		&item.Price,
		&item.Image,
		&item.Status,
		&sentTo,
		&sentToName,
		&sentAtStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	item.SentTo = sentTo.String
	item.SentToName = sentToName.String
	if sentAtStr.Valid {
		t, err := parseTime(sentAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing sent_at: %w", err)
		}
		item.SentAt = &t
	}
	if item.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &item, nil
}

// GetItem retrieves an item by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items i LEFT JOIN users u ON u.id = i.sent_to
		WHERE i.id = ?
	`, id)

	item, err := scanItemRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItemRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItems returns all items, newest first.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i LEFT JOIN users u ON u.id = i.sent_to
		ORDER BY i.created_at DESC
	`)
}

// ListItemsByStatus returns items filtered by status, newest first.
func (s *SQLiteStore) ListItemsByStatus(ctx context.Context, status string) ([]*Item, error) {
	return s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i LEFT JOIN users u ON u.id = i.sent_to
		WHERE i.status = ?
		ORDER BY i.created_at DESC
	`, status)
}

// UpdateItem updates an item's code, price and image.
// Returns ErrNotFound if the item doesn't exist, ErrDuplicateItemCode if the
// new code collides with another item.
func (s *SQLiteStore) UpdateItem(ctx context.Context, item *Item) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET code = ?, price = ?, image = ?, updated_at = ?
		WHERE id = ?
	`, item.Code, item.Price, item.Image, formatTime(item.UpdatedAt), item.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateItemCode
		}
		return fmt.Errorf("updating item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking item update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes an item. Returns ErrNotFound if absent.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking item delete: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkItemSent records that an item was sent to a user: status flips to
// sold_out and the recipient and timestamp are recorded.
func (s *SQLiteStore) MarkItemSent(ctx context.Context, itemID, userID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = ?, sent_to = ?, sent_at = ?, updated_at = ?
		WHERE id = ?
	`, ItemStatusSoldOut, userID, formatTime(sentAt), formatTime(sentAt), itemID)
	if err != nil {
		return fmt.Errorf("marking item sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking item send: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

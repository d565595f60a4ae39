// ABOUTME: Item catalog service: admin-moderated CRUD plus send-to-user
// ABOUTME: Mutations broadcast an items-updated snapshot to all live clients

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/store"
)

// ErrInvalidInput is returned for malformed item fields.
var ErrInvalidInput = errors.New("invalid input")

// ItemStore defines what the catalog service needs from storage
type ItemStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)

	CreateItem(ctx context.Context, item *store.Item) error
	GetItem(ctx context.Context, id string) (*store.Item, error)
	ListItems(ctx context.Context) ([]*store.Item, error)
	ListItemsByStatus(ctx context.Context, status string) ([]*store.Item, error)
	UpdateItem(ctx context.Context, item *store.Item) error
	DeleteItem(ctx context.Context, id string) error
	MarkItemSent(ctx context.Context, itemID, userID string, sentAt time.Time) error
}

// Service manages the item catalog.
type Service struct {
	store       ItemStore
	broadcaster *chat.Broadcaster
	logger      *slog.Logger
}

// New creates a catalog service.
func New(st ItemStore, broadcaster *chat.Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		broadcaster: broadcaster,
		logger:      logger.With("component", "catalog"),
	}
}

// List returns all items, newest first.
func (s *Service) List(ctx context.Context) ([]*store.Item, error) {
	return s.store.ListItems(ctx)
}

// ListByStatus returns items with the given status.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]*store.Item, error) {
	if status != store.ItemStatusAvailable && status != store.ItemStatusSoldOut {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.ListItemsByStatus(ctx, status)
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Item, error) {
	return s.store.GetItem(ctx, id)
}

// Create adds a new available item to the catalog.
func (s *Service) Create(ctx context.Context, code string, price int64, image string) (*store.Item, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: item code is required", ErrInvalidInput)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}

	now := time.Now()
	item := &store.Item{
		ID:        uuid.New().String(),
		Code:      code,
		Price:     price,
		Image:     image,
		Status:    store.ItemStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item created", "item_id", item.ID, "code", item.Code)
	s.broadcastItems(ctx)
	return item, nil
}

// Update replaces an item's code, price and image.
func (s *Service) Update(ctx context.Context, id, code string, price int64, image string) (*store.Item, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: item code is required", ErrInvalidInput)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}

	item := &store.Item{
		ID:        id,
		Code:      code,
		Price:     price,
		Image:     image,
		UpdatedAt: time.Now(),
	}
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	updated, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcastItems(ctx)
	return updated, nil
}

// Delete removes an item from the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info("item deleted", "item_id", id)
	s.broadcastItems(ctx)
	return nil
}

// Send records that an item was sent to a user: the item goes sold_out with
// the recipient and timestamp recorded. The user must exist.
func (s *Service) Send(ctx context.Context, itemID, userID string) (*store.Item, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.store.MarkItemSent(ctx, itemID, userID, time.Now()); err != nil {
		return nil, err
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item sent", "item_id", itemID, "user_id", userID)
	s.broadcastItems(ctx)
	return item, nil
}

// ItemView is the wire representation of an item, shared by the HTTP
// responses and the items-updated broadcast payload.
type ItemView struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	Price      int64      `json:"price"`
	Image      string     `json:"image,omitempty"`
	Status     string     `json:"status"`
	SentTo     string     `json:"sentTo,omitempty"`
	SentToName string     `json:"sentToName,omitempty"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// View converts a stored item to its wire shape.
func View(item *store.Item) *ItemView {
	return &ItemView{
		ID:         item.ID,
		Code:       item.Code,
		Price:      item.Price,
		Image:      item.Image,
		Status:     item.Status,
		SentTo:     item.SentTo,
		SentToName: item.SentToName,
		SentAt:     item.SentAt,
		CreatedAt:  item.CreatedAt,
	}
}

// Views converts a slice of stored items to wire shapes.
func Views(items []*store.Item) []*ItemView {
	views := make([]*ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, View(item))
	}
	return views
}

// broadcastItems pushes the full catalog snapshot to every live client.
// Failure to fetch the snapshot is logged, never surfaced: the originating
// mutation has already committed.
func (s *Service) broadcastItems(ctx context.Context) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.logger.Error("listing items for broadcast", "error", err)
		return
	}
	s.broadcaster.PublishAll(&chat.Event{Name: chat.EventItemsUpdated, Payload: Views(items)})
}

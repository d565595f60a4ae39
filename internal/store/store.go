// ABOUTME: Store interface and data types for shopdesk persistence
// ABOUTME: Defines User, Conversation, Message, Item structs and sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation already exists for a user
var ErrDuplicateConversation = errors.New("conversation already exists for user")

// ErrDuplicateUserName is returned when creating a user whose name is already taken
var ErrDuplicateUserName = errors.New("user name already exists")

// ErrDuplicateItemCode is returned when creating an item whose code is already taken
var ErrDuplicateItemCode = errors.New("item code already exists")

// Sender constants for message authorship
const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

// Item status constants
const (
	ItemStatusAvailable = "available"
	ItemStatusSoldOut   = "sold_out"
)

// User is a customer account. Presence fields are written by the chat
// presence tracker as well as login/logout.
type User struct {
	ID        string
	Name      string
	Online    bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// Conversation is the persisted chat thread between one user and the admin.
// Exactly one conversation exists per user (UNIQUE constraint on user_id).
// LastMessage, LastMessageTime and UnreadCount are denormalized rollups kept
// in sync with the message log by AppendMessage and MarkConversationRead.
type Conversation struct {
	ID              string
	UserID          string
	UserName        string // snapshot of the user's name at creation time
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
	UserOnline      bool
	AdminOnline     bool
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Attachment describes a stored file referenced by a message. All four
// fields are present together or the attachment is absent entirely.
type Attachment struct {
	URL  string
	Name string
	Type string
	Size int64
}

// Message is a single entry in a conversation's log. Immutable after insert
// except for the Read flag.
type Message struct {
	ID             string
	ConversationID string
	Sender         string // SenderUser or SenderAdmin
	Body           string
	Read           bool
	Attachment     *Attachment
	CreatedAt      time.Time
}

// ConversationSummary is a list row for the admin inbox. Online and LastSeen
// come from the live user record when it still exists; UserName falls back to
// the conversation's own snapshot when it doesn't.
type ConversationSummary struct {
	ID              string
	UserID          string
	UserName        string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
	Online          bool
	LastSeen        time.Time
}

// Item is a catalog entry moderated by the admin.
type Item struct {
	ID         string
	Code       string
	Price      int64
	Image      string
	Status     string // ItemStatusAvailable or ItemStatusSoldOut
	SentTo     string // user id, empty until the item is sent
	SentToName string // resolved on read, not stored
	SentAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Admin is the single moderator account.
type Admin struct {
	ID        string
	Email     string
	Password  string
	Name      string
	LastLogin time.Time
}

// Store defines the interface for shopdesk persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserName(ctx context.Context, id, name string) error
	DeleteUser(ctx context.Context, id string) error
	SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error

	// Conversations and messages
	CreateConversation(ctx context.Context, conv *Conversation, seed *Message) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByUserID(ctx context.Context, userID string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*ConversationSummary, error)
	GetMessages(ctx context.Context, conversationID string) ([]*Message, error)
	AppendMessage(ctx context.Context, msg *Message, lastMessage string, lastMessageTime time.Time) error
	MarkConversationRead(ctx context.Context, conversationID string) (int, error)
	SetConversationUserOnline(ctx context.Context, userID string, online bool) error
	SetConversationsAdminOnline(ctx context.Context, online bool) error
	DeactivateConversation(ctx context.Context, userID string) error

	// Items
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	ListItemsByStatus(ctx context.Context, status string) ([]*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id string) error
	MarkItemSent(ctx context.Context, itemID, userID string, sentAt time.Time) error

	// Admin account
	EnsureAdmin(ctx context.Context, admin *Admin) error
	GetAdmin(ctx context.Context, id string) (*Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	UpdateAdminProfile(ctx context.Context, id, name, email string) error
	TouchAdminLogin(ctx context.Context, id string, at time.Time) error

	Close() error
}

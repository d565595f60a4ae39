// ABOUTME: Event names, audiences and payload types for the realtime layer
// ABOUTME: Event names are part of the client compatibility contract

package chat

import "time"

// Audience is a logical broadcast target: the admin collective or one
// specific user. The set of audience keys is flat; a connection subscribes
// to exactly one.
type Audience string

// AudienceAdmin addresses every connection that joined as admin.
const AudienceAdmin Audience = "admin"

// UserAudience addresses the connections of one specific user.
func UserAudience(userID string) Audience {
	return Audience("user:" + userID)
}

// Event names delivered to live connections. These are wire-visible and must
// not change without coordinating with the frontends.
const (
	EventNewMessage   = "new-message"
	EventChatUpdated  = "chat-updated"
	EventUserOnline   = "user-online"
	EventAdminOnline  = "admin-online"
	EventUserTyping   = "user-typing"
	EventUserLoggedIn = "user-logged-in"
	EventUsersUpdated = "users-updated"
	EventItemsUpdated = "items-updated"
)

// Event is one broadcast unit: a wire-visible name plus a JSON-marshalable
// payload. Events are transient; nothing replays them for late subscribers.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data,omitempty"`
}

// MessagePayload is the payload for new-message events.
type MessagePayload struct {
	ChatID    string    `json:"chatId"`
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
}

// ChatUpdatedPayload is the rollup payload sent to the admin audience
// whenever a conversation's summary changes.
type ChatUpdatedPayload struct {
	Action      string    `json:"action"`
	ChatID      string    `json:"chatId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	LastMessage string    `json:"lastMessage"`
	UnreadCount int       `json:"unreadCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// PresencePayload is the payload for user-online and admin-online events.
type PresencePayload struct {
	UserID    string    `json:"userId,omitempty"`
	Online    bool      `json:"isOnline"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload is the payload for user-typing events. Typing state is
// forwarded between the two parties and never persisted.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	From   string `json:"from"` // "user" or "admin"
	Typing bool   `json:"typing"`
}

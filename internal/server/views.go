// ABOUTME: Wire representations of stored entities for HTTP responses
// ABOUTME: Field names are part of the client compatibility contract

package server

import (
	"time"

	"github.com/2389/shopdesk/internal/store"
)

type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewUser(u *store.User) *userView {
	return &userView{
		ID:        u.ID,
		Name:      u.Name,
		IsOnline:  u.Online,
		LastSeen:  u.LastSeen,
		CreatedAt: u.CreatedAt,
	}
}

func viewUsers(users []*store.User) []*userView {
	views := make([]*userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewUser(u))
	}
	return views
}

type conversationView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
	UserOnline      bool      `json:"userOnline"`
	AdminOnline     bool      `json:"adminOnline"`
	CreatedAt       time.Time `json:"createdAt"`
}

func viewConversation(c *store.Conversation) *conversationView {
	return &conversationView{
		ID:              c.ID,
		UserID:          c.UserID,
		UserName:        c.UserName,
		LastMessage:     c.LastMessage,
		LastMessageTime: c.LastMessageTime,
		UnreadCount:     c.UnreadCount,
		UserOnline:      c.UserOnline,
		AdminOnline:     c.AdminOnline,
		CreatedAt:       c.CreatedAt,
	}
}

type summaryView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
	IsOnline        bool      `json:"isOnline"`
	LastSeen        time.Time `json:"lastSeen"`
}

func viewSummaries(summaries []*store.ConversationSummary) []*summaryView {
	views := make([]*summaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, &summaryView{
			ID:              s.ID,
			UserID:          s.UserID,
			UserName:        s.UserName,
			LastMessage:     s.LastMessage,
			LastMessageTime: s.LastMessageTime,
			UnreadCount:     s.UnreadCount,
			IsOnline:        s.Online,
			LastSeen:        s.LastSeen,
		})
	}
	return views
}

type messageView struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	FileSize  int64     `json:"fileSize,omitempty"`
}

func viewMessage(m *store.Message) *messageView {
	v := &messageView{
		ID:        m.ID,
		ChatID:    m.ConversationID,
		Sender:    m.Sender,
		Message:   m.Body,
		Read:      m.Read,
		Timestamp: m.CreatedAt,
	}
	if m.Attachment != nil {
		v.FileURL = m.Attachment.URL
		v.FileName = m.Attachment.Name
		v.FileType = m.Attachment.Type
		v.FileSize = m.Attachment.Size
	}
	return v
}

func viewMessages(messages []*store.Message) []*messageView {
	views := make([]*messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, viewMessage(m))
	}
	return views
}

type adminView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	LastLogin time.Time `json:"lastLogin"`
}

func viewAdmin(a *store.Admin) *adminView {
	return &adminView{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		LastLogin: a.LastLogin,
	}
}

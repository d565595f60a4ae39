// ABOUTME: Chat service: conversation lifecycle, message ingestion, read-state and presence
// ABOUTME: All chat mutations flow through here; store commit always precedes broadcast

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shopdesk/internal/metrics"
	"github.com/2389/shopdesk/internal/store"
)

// ErrInvalidInput is returned for messages with neither text nor attachment,
// overlong bodies, and malformed presence updates.
var ErrInvalidInput = errors.New("invalid input")

// lastMessagePreviewLen is the rollup truncation threshold. Longer bodies are
// cut here and suffixed with an ellipsis.
const lastMessagePreviewLen = 50

// maxMessageLen caps a normalized message body, in runes.
const maxMessageLen = 1000

// ConversationStore defines what the chat service needs from storage
type ConversationStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error

	CreateConversation(ctx context.Context, conv *store.Conversation, seed *store.Message) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetConversationByUserID(ctx context.Context, userID string) (*store.Conversation, error)
	ListConversations(ctx context.Context) ([]*store.ConversationSummary, error)
	GetMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
	AppendMessage(ctx context.Context, msg *store.Message, lastMessage string, lastMessageTime time.Time) error
	MarkConversationRead(ctx context.Context, conversationID string) (int, error)
	SetConversationUserOnline(ctx context.Context, userID string, online bool) error
	SetConversationsAdminOnline(ctx context.Context, online bool) error
}

// Service is the central chat layer. It owns conversation creation, message
// ingestion, read-state reconciliation and presence, and hands every
// committed mutation to the broadcaster for fan-out.
type Service struct {
	store       ConversationStore
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// New creates a chat service. The broadcaster is injected once at process
// start; nothing else talks to live connections.
func New(st ConversationStore, broadcaster *Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		broadcaster: broadcaster,
		logger:      logger.With("component", "chat"),
	}
}

// GetOrCreate returns the user's conversation with its full message log,
// creating it on first contact. A new conversation is seeded with one
// admin-authored welcome message and an unread count of 1. Concurrent calls
// for the same absent user are resolved by the store's uniqueness
// constraint: the loser retries as a read.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*store.Conversation, []*store.Message, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	conv, err := s.store.GetConversationByUserID(ctx, userID)
	if err == nil {
		return s.withMessages(ctx, conv)
	}
	if err != store.ErrNotFound {
		return nil, nil, err
	}

	now := time.Now()
	welcome := fmt.Sprintf("Hello %s, welcome! How can I help you?", user.Name)
	conv = &store.Conversation{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		UserName:        user.Name,
		LastMessage:     welcome,
		LastMessageTime: now,
		UnreadCount:     1,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	seed := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Sender:         store.SenderAdmin,
		Body:           welcome,
		Read:           false,
		CreatedAt:      now,
	}

	if err := s.store.CreateConversation(ctx, conv, seed); err != nil {
		if err == store.ErrDuplicateConversation {
			// Lost the creation race; the winner's conversation is the one
			s.logger.Debug("conversation creation raced, retrying as read", "user_id", userID)
			conv, err = s.store.GetConversationByUserID(ctx, userID)
			if err != nil {
				return nil, nil, fmt.Errorf("rereading conversation after race: %w", err)
			}
			return s.withMessages(ctx, conv)
		}
		return nil, nil, err
	}

	metrics.ConversationsCreated.Inc()
	s.logger.Info("conversation created", "conversation_id", conv.ID, "user_id", userID)
	return s.withMessages(ctx, conv)
}

func (s *Service) withMessages(ctx context.Context, conv *store.Conversation) (*store.Conversation, []*store.Message, error) {
	messages, err := s.store.GetMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// Get returns a conversation with its full message log by conversation id.
func (s *Service) Get(ctx context.Context, conversationID string) (*store.Conversation, []*store.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return s.withMessages(ctx, conv)
}

// ListConversations returns active conversation summaries, most recent
// activity first.
func (s *Service) ListConversations(ctx context.Context) ([]*store.ConversationSummary, error) {
	return s.store.ListConversations(ctx)
}

// GetMessages returns a conversation's log. When markRead is set, unread
// user-authored messages are reconciled first (see MarkRead).
func (s *Service) GetMessages(ctx context.Context, conversationID string, markRead bool) ([]*store.Message, error) {
	if markRead {
		if _, err := s.MarkRead(ctx, conversationID); err != nil {
			return nil, err
		}
	}
	return s.store.GetMessages(ctx, conversationID)
}

// MarkRead flags all unread user-authored messages in the conversation as
// read and resets the unread counter, returning how many were newly marked.
// Idempotent: a second call with no intervening message returns 0. Read
// state is pulled by the admin's own request, so no event is emitted.
func (s *Service) MarkRead(ctx context.Context, conversationID string) (int, error) {
	marked, err := s.store.MarkConversationRead(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.logger.Debug("messages reconciled", "conversation_id", conversationID, "marked", marked)
	}
	return marked, nil
}

// AppendRequest carries one inbound message into the ingestion pipeline.
// ConversationID takes precedence for resolution; UserID is the fallback and
// creates the conversation when the user exists but has none yet.
type AppendRequest struct {
	ConversationID string
	UserID         string
	Sender         string // store.SenderUser or store.SenderAdmin
	Body           string
	Attachment     *store.Attachment
}

// Append validates, normalizes and persists an inbound message, updates the
// owning conversation's rollups, and emits new-message plus chat-updated
// events. The message is durable once this returns; broadcast is best-effort
// after commit.
func (s *Service) Append(ctx context.Context, req *AppendRequest) (*store.Message, error) {
	if req.Sender != store.SenderUser && req.Sender != store.SenderAdmin {
		return nil, fmt.Errorf("%w: unknown sender %q", ErrInvalidInput, req.Sender)
	}

	body := normalizeBody(req.Body, req.Attachment)
	if body == "" {
		return nil, fmt.Errorf("%w: message requires text or an attachment", ErrInvalidInput)
	}
	if len([]rune(body)) > maxMessageLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxMessageLen)
	}

	conv, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Sender:         req.Sender,
		Body:           body,
		Read:           req.Sender == store.SenderAdmin, // admin sending implies admin has seen the thread
		Attachment:     req.Attachment,
		CreatedAt:      now,
	}

	lastMessage := truncatePreview(body)
	if err := s.store.AppendMessage(ctx, msg, lastMessage, now); err != nil {
		return nil, err
	}
	metrics.MessagesIngested.WithLabelValues(req.Sender).Inc()

	// Mirror the rollup mutation locally for the broadcast payload.
	unread := 0
	if req.Sender == store.SenderUser {
		unread = conv.UnreadCount + 1
	}

	s.broadcastMessage(conv, msg, lastMessage, unread)
	return msg, nil
}

// broadcastMessage fans out a committed message: new-message to the audience
// opposite the sender, chat-updated to the admin audience always. Emission
// never fails the originating request.
func (s *Service) broadcastMessage(conv *store.Conversation, msg *store.Message, lastMessage string, unread int) {
	payload := &MessagePayload{
		ChatID:    conv.ID,
		MessageID: msg.ID,
		UserID:    conv.UserID,
		UserName:  conv.UserName,
		Message:   msg.Body,
		Sender:    msg.Sender,
		Timestamp: msg.CreatedAt,
		Read:      msg.Read,
	}
	if msg.Attachment != nil {
		payload.FileURL = msg.Attachment.URL
		payload.FileName = msg.Attachment.Name
	}

	target := AudienceAdmin
	if msg.Sender == store.SenderAdmin {
		target = UserAudience(conv.UserID)
	}
	s.broadcaster.Publish(target, &Event{Name: EventNewMessage, Payload: payload})

	s.broadcaster.Publish(AudienceAdmin, &Event{Name: EventChatUpdated, Payload: &ChatUpdatedPayload{
		Action:      "new-message",
		ChatID:      conv.ID,
		UserID:      conv.UserID,
		UserName:    conv.UserName,
		LastMessage: lastMessage,
		UnreadCount: unread,
		Timestamp:   msg.CreatedAt,
	}})
}

// resolveConversation finds the target conversation: by id when provided and
// valid, else by user id, creating an empty conversation for a known user.
func (s *Service) resolveConversation(ctx context.Context, req *AppendRequest) (*store.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := s.store.GetConversation(ctx, req.ConversationID)
		if err == nil {
			return conv, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}

	if req.UserID == "" {
		return nil, store.ErrNotFound
	}

	conv, err := s.store.GetConversationByUserID(ctx, req.UserID)
	if err == nil {
		return conv, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	// First contact through the send path: create without a welcome seed.
	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	conv = &store.Conversation{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		UserName:        user.Name,
		LastMessageTime: now,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateConversation(ctx, conv, nil); err != nil {
		if err == store.ErrDuplicateConversation {
			return s.store.GetConversationByUserID(ctx, req.UserID)
		}
		return nil, err
	}
	metrics.ConversationsCreated.Inc()
	return conv, nil
}

// SetPresence updates the online flag for one side of the conversation.
// A user's change touches their user row and their conversation and is
// announced to the admin audience; the admin's change touches every
// conversation and is announced to everyone. Presence has no heartbeat: an
// unclean disconnect stays online until an explicit offline signal arrives.
func (s *Service) SetPresence(ctx context.Context, who, id string, online bool) error {
	now := time.Now()

	switch who {
	case store.SenderUser:
		if err := s.store.SetUserPresence(ctx, id, online, now); err != nil {
			return err
		}
		if err := s.store.SetConversationUserOnline(ctx, id, online); err != nil {
			return err
		}
		s.broadcaster.Publish(AudienceAdmin, &Event{Name: EventUserOnline, Payload: &PresencePayload{
			UserID:    id,
			Online:    online,
			Timestamp: now,
		}})

	case store.SenderAdmin:
		if err := s.store.SetConversationsAdminOnline(ctx, online); err != nil {
			return err
		}
		s.broadcaster.PublishAll(&Event{Name: EventAdminOnline, Payload: &PresencePayload{
			Online:    online,
			Timestamp: now,
		}})

	default:
		return fmt.Errorf("%w: unknown presence role %q", ErrInvalidInput, who)
	}

	return nil
}

// NotifyTyping forwards a transient typing indicator to the party opposite
// the originator. Nothing is persisted.
func (s *Service) NotifyTyping(from, chatID, userID string, typing bool) {
	payload := &TypingPayload{
		ChatID: chatID,
		UserID: userID,
		From:   from,
		Typing: typing,
	}
	target := AudienceAdmin
	if from == store.SenderAdmin {
		target = UserAudience(userID)
	}
	s.broadcaster.Publish(target, &Event{Name: EventUserTyping, Payload: payload})
}

// normalizeBody trims the text and folds the attachment into it: an
// attachment-only message gets a synthesized placeholder body, a message
// carrying both gets an inline file marker appended.
func normalizeBody(body string, att *store.Attachment) string {
	trimmed := strings.TrimSpace(body)
	if att == nil {
		return trimmed
	}
	if trimmed == "" {
		return fmt.Sprintf("[Sending file: %s]", att.Name)
	}
	return fmt.Sprintf("%s [file: %s]", trimmed, att.Name)
}

// truncatePreview cuts a body down to the rollup preview length, appending
// an ellipsis when truncated.
func truncatePreview(body string) string {
	runes := []rune(body)
	if len(runes) <= lastMessagePreviewLen {
		return body
	}
	return string(runes[:lastMessagePreviewLen]) + "..."
}

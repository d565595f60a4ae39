// ABOUTME: HTTP handlers for the chat surface: inbox, history, send, presence
// ABOUTME: Parses wire shapes and delegates to the chat service

package server

import (
	"net/http"

	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/store"
)

// handleListChats returns the admin inbox: active conversation summaries
// ordered by most recent activity.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.chat.ListConversations(r.Context())
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewSummaries(summaries))
}

// handleChatLookup routes the two-segment chat GETs registered under one
// pattern: /user/{userID} resolves the user's conversation, /{chatID}/messages
// fetches a log. The "user" literal wins when both shapes could match.
func (s *Server) handleChatLookup(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "user":
		s.getOrCreateChat(w, r, second)
	case second == "messages":
		s.chatMessages(w, r, first)
	default:
		respondError(w, http.StatusNotFound, "route not found")
	}
}

// getOrCreateChat returns the user's conversation with its full message log,
// creating it on first contact.
func (s *Server) getOrCreateChat(w http.ResponseWriter, r *http.Request, userID string) {
	conv, messages, err := s.chat.GetOrCreate(r.Context(), userID)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"chat":     viewConversation(conv),
		"messages": viewMessages(messages),
	})
}

// handleGetChat returns one conversation with its full message log.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	conv, messages, err := s.chat.Get(r.Context(), r.PathValue("chatID"))
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"chat":     viewConversation(conv),
		"messages": viewMessages(messages),
	})
}

// chatMessages returns a conversation's log. ?markRead=true reconciles
// unread user messages first.
func (s *Server) chatMessages(w http.ResponseWriter, r *http.Request, chatID string) {
	markRead := r.URL.Query().Get("markRead") == "true"

	messages, err := s.chat.GetMessages(r.Context(), chatID, markRead)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewMessages(messages))
}

type sendMessageRequest struct {
	Message  string `json:"message"`
	Sender   string `json:"sender"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// attachment builds the attachment descriptor from the request, or nil when
// no file fields are set. Partial attachment fields are rejected upstream by
// requiring all of url, name and type together.
func (req *sendMessageRequest) attachment() (*store.Attachment, bool) {
	if req.FileURL == "" && req.FileName == "" && req.FileType == "" && req.FileSize == 0 {
		return nil, true
	}
	if req.FileURL == "" || req.FileName == "" || req.FileType == "" {
		return nil, false
	}
	return &store.Attachment{
		URL:  req.FileURL,
		Name: req.FileName,
		Type: req.FileType,
		Size: req.FileSize,
	}, true
}

// handleSendMessage ingests one message. The chatID path segment may be the
// literal "new" when the client has no conversation yet; resolution then
// falls back to the userID segment.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	if chatID == "new" {
		chatID = ""
	}
	userID := r.PathValue("userID")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	att, ok := req.attachment()
	if !ok {
		respondError(w, http.StatusBadRequest, "incomplete file attachment")
		return
	}

	msg, err := s.chat.Append(r.Context(), &chat.AppendRequest{
		ConversationID: chatID,
		UserID:         userID,
		Sender:         req.Sender,
		Body:           req.Message,
		Attachment:     att,
	})
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusCreated, viewMessage(msg))
}

type statusRequest struct {
	IsOnline bool   `json:"isOnline"`
	UserType string `json:"userType"` // "user" or "admin"
}

// handleUpdateStatus records an explicit presence signal for one side of the
// conversation.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserType == "" {
		req.UserType = store.SenderUser
	}

	if err := s.chat.SetPresence(r.Context(), req.UserType, userID, req.IsOnline); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "status updated", nil)
}

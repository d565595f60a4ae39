// ABOUTME: HTTP handlers for user accounts: login-or-register and CRUD
// ABOUTME: Login is by case-insensitive name; no password exists for users

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/store"
)

type userLoginRequest struct {
	Name string `json:"name"`
}

// handleUserLogin logs a user in by name, registering them on first contact.
// Name matching is case-insensitive; the stored spelling wins.
func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	var req userLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx := r.Context()
	now := time.Now()
	registered := false

	user, err := s.store.GetUserByName(ctx, name)
	switch {
	case err == nil:
		if err := s.store.SetUserPresence(ctx, user.ID, true, now); err != nil {
			respondServiceError(w, s.logger, err)
			return
		}
		user.Online = true
		user.LastSeen = now

	case errors.Is(err, store.ErrNotFound):
		user = &store.User{
			ID:        uuid.New().String(),
			Name:      name,
			Online:    true,
			LastSeen:  now,
			CreatedAt: now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicateUserName) {
				// Lost a registration race; the winner's record is the account.
				user, err = s.store.GetUserByName(ctx, name)
				if err != nil {
					respondServiceError(w, s.logger, err)
					return
				}
			} else {
				respondServiceError(w, s.logger, err)
				return
			}
		} else {
			registered = true
		}

	default:
		respondServiceError(w, s.logger, err)
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "name", user.Name, "registered", registered)

	// Login announcements are global, same as the roster push below.
	s.broadcaster.PublishAll(&chat.Event{Name: chat.EventUserLoggedIn, Payload: viewUser(user)})
	s.publishUsersUpdated(r)

	respondData(w, http.StatusOK, viewUser(user))
}

// handleListUsers returns all users, most recently seen first.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewUsers(users))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewUser(user))
}

// handleUserLogout marks the user offline and propagates presence.
func (s *Server) handleUserLogout(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if err := s.chat.SetPresence(r.Context(), store.SenderUser, userID, false); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	s.publishUsersUpdated(r)
	respondMessage(w, http.StatusOK, "logged out", nil)
}

type updateUserRequest struct {
	Name string `json:"name"`
}

// handleUpdateUser renames a user. The conversation keeps its original name
// snapshot; list reads resolve the live name.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.store.UpdateUserName(r.Context(), userID, name); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	s.publishUsersUpdated(r)
	respondData(w, http.StatusOK, viewUser(user))
}

// handleDeleteUser removes a user and deactivates their conversation. The
// message log survives for the admin's records.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	ctx := r.Context()

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	if err := s.store.DeactivateConversation(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("deactivating conversation after user delete", "user_id", userID, "error", err)
	}

	s.logger.Info("user deleted", "user_id", userID)
	s.publishUsersUpdated(r)
	respondMessage(w, http.StatusOK, "user deleted", nil)
}

// publishUsersUpdated pushes the current user roster to every live client.
// Failure to fetch is logged, never surfaced.
func (s *Server) publishUsersUpdated(r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("listing users for broadcast", "error", err)
		return
	}
	s.broadcaster.PublishAll(&chat.Event{Name: chat.EventUsersUpdated, Payload: viewUsers(users)})
}

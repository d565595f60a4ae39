// ABOUTME: HTTP handlers for the moderator account: login and profile
// ABOUTME: Login is a plaintext equality check against the seeded credentials

package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2389/shopdesk/internal/store"
)

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleAdminLogin authenticates the moderator. Credentials are compared
// against the stored plaintext password; a miss returns 401 without
// distinguishing unknown email from wrong password.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := s.store.GetAdminByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondServiceError(w, s.logger, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(admin.Password), []byte(req.Password)) != 1 {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now()
	if err := s.store.TouchAdminLogin(r.Context(), admin.ID, now); err != nil {
		s.logger.Error("recording admin login time", "error", err)
	}
	admin.LastLogin = now

	s.logger.Info("admin logged in", "admin_id", admin.ID)
	respondData(w, http.StatusOK, viewAdmin(admin))
}

func (s *Server) handleAdminProfile(w http.ResponseWriter, r *http.Request) {
	admin, err := s.store.GetAdmin(r.Context(), r.PathValue("adminID"))
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewAdmin(admin))
}

type adminProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleAdminProfileUpdate updates the moderator's name and email. Empty
// fields keep their current values.
func (s *Server) handleAdminProfileUpdate(w http.ResponseWriter, r *http.Request) {
	adminID := r.PathValue("adminID")

	var req adminProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.UpdateAdminProfile(r.Context(), adminID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}

	admin, err := s.store.GetAdmin(r.Context(), adminID)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, viewAdmin(admin))
}

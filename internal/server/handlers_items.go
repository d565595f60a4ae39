// ABOUTME: HTTP handlers for the item catalog: CRUD plus send-to-user
// ABOUTME: All mutations are admin operations; the catalog service broadcasts

package server

import (
	"net/http"

	"github.com/2389/shopdesk/internal/catalog"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.List(r.Context())
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, catalog.Views(items))
}

func (s *Server) handleListItemsByStatus(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.ListByStatus(r.Context(), r.PathValue("status"))
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, catalog.Views(items))
}

type itemRequest struct {
	Code  string `json:"code"`
	Price int64  `json:"price"`
	Image string `json:"image"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.catalog.Create(r.Context(), req.Code, req.Price, req.Image)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusCreated, catalog.View(item))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.catalog.Update(r.Context(), r.PathValue("itemID"), req.Code, req.Price, req.Image)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, catalog.View(item))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("itemID")); err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "item deleted", nil)
}

type sendItemRequest struct {
	UserID string `json:"userId"`
}

// handleSendItem records an item as sent to a user: status flips to sold_out
// with the recipient and timestamp recorded.
func (s *Server) handleSendItem(w http.ResponseWriter, r *http.Request) {
	var req sendItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	item, err := s.catalog.Send(r.Context(), r.PathValue("itemID"), req.UserID)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}
	respondData(w, http.StatusOK, catalog.View(item))
}

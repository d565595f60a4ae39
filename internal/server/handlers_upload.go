// ABOUTME: HTTP handler for chat file uploads
// ABOUTME: Accepts one multipart file and returns its attachment descriptor

package server

import (
	"net/http"

	"github.com/2389/shopdesk/internal/upload"
)

// handleUpload stores one multipart file field named "file" and returns the
// descriptor the client embeds in a subsequent send.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request body; a small allowance covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+(64<<10))

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	att, err := s.uploads.Save(file, header.Filename, contentType, header.Size)
	if err != nil {
		respondServiceError(w, s.logger, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]any{
		"fileUrl":  att.URL,
		"fileName": att.Name,
		"fileType": att.Type,
		"fileSize": att.Size,
	})
}

// ABOUTME: Attachment storage: validates and persists uploaded chat files
// ABOUTME: Enforces the size ceiling and image-only allowlist before any write

package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/shopdesk/internal/metrics"
	"github.com/2389/shopdesk/internal/store"
)

// MaxSize is the hard upload ceiling. Oversized payloads are rejected before
// any store mutation occurs.
const MaxSize = 5 << 20 // 5 MiB

// URLPrefix is the static-serving path uploads are addressed under. The chat
// core treats the resulting URL as an opaque descriptor.
const URLPrefix = "/uploads/"

// ErrTooLarge is returned for payloads over MaxSize.
var ErrTooLarge = fmt.Errorf("file exceeds %d byte limit", MaxSize)

// ErrUnsupportedType is returned for content types outside the allowlist.
var ErrUnsupportedType = errors.New("unsupported file type")

// allowedTypes is the accepted content-type allowlist. Images only.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Store persists attachments under a single directory with random,
// collision-resistant filenames.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "upload"),
	}, nil
}

// Dir returns the directory files are stored under, for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// Save validates and writes one uploaded file, returning its descriptor.
// The declared content type must be on the image allowlist and the payload
// must fit MaxSize; both are checked before anything touches disk.
func (s *Store) Save(r io.Reader, originalName, contentType string, size int64) (*store.Attachment, error) {
	if !allowedTypes[contentType] {
		metrics.UploadsRejected.WithLabelValues("type").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if size > MaxSize {
		metrics.UploadsRejected.WithLabelValues("size").Inc()
		return nil, ErrTooLarge
	}

	name := uuid.New().String() + sanitizeExt(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}

	// Copy with a hard cap in case the declared size lied.
	written, err := io.Copy(f, io.LimitReader(r, MaxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing upload: %w", err)
	}
	if written > MaxSize {
		os.Remove(path)
		metrics.UploadsRejected.WithLabelValues("size").Inc()
		return nil, ErrTooLarge
	}

	s.logger.Debug("stored upload",
		"file", name,
		"original_name", originalName,
		"size", written)

	return &store.Attachment{
		URL:  URLPrefix + name,
		Name: originalName,
		Type: contentType,
		Size: written,
	}, nil
}

// sanitizeExt extracts a safe extension from the client-supplied filename.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// ABOUTME: HTTP server assembly: routes, middleware, lifecycle
// ABOUTME: Thin boundary layer; all chat semantics live in internal/chat

package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/shopdesk/internal/catalog"
	"github.com/2389/shopdesk/internal/chat"
	"github.com/2389/shopdesk/internal/config"
	"github.com/2389/shopdesk/internal/store"
	"github.com/2389/shopdesk/internal/upload"
)

// Server wires the HTTP surface to the chat core and catalog services.
type Server struct {
	cfg         *config.Config
	store       store.Store
	chat        *chat.Service
	catalog     *catalog.Service
	uploads     *upload.Store
	broadcaster *chat.Broadcaster
	logger      *slog.Logger
	httpServer  *http.Server
}

// New assembles the server. The broadcaster is the same instance injected
// into the chat and catalog services; the websocket layer subscribes
// connections to it directly.
func New(cfg *config.Config, st store.Store, chatSvc *chat.Service, catalogSvc *catalog.Service, uploads *upload.Store, broadcaster *chat.Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		store:       st,
		chat:        chatSvc,
		catalog:     catalogSvc,
		uploads:     uploads,
		broadcaster: broadcaster,
		logger:      logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: s.corsMiddleware(mux),
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)

	// Users
	mux.HandleFunc("POST /api/users/login", s.handleUserLogin)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("GET /api/users/{userID}", s.handleGetUser)
	mux.HandleFunc("PUT /api/users/logout/{userID}", s.handleUserLogout)
	mux.HandleFunc("PUT /api/users/{userID}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /api/users/{userID}", s.handleDeleteUser)

	// Admin account
	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("GET /api/admin/profile/{adminID}", s.handleAdminProfile)
	mux.HandleFunc("PUT /api/admin/profile/{adminID}", s.handleAdminProfileUpdate)

	// Chat. The two-segment GETs share one dispatcher: "user/{userID}" and
	// "{chatID}/messages" overlap as mux patterns (both match paths like
	// /api/chats/user/messages), which ServeMux rejects at registration.
	mux.HandleFunc("GET /api/chats/admin", s.handleListChats)
	mux.HandleFunc("GET /api/chats/{chatID}", s.handleGetChat)
	mux.HandleFunc("GET /api/chats/{first}/{second}", s.handleChatLookup)
	mux.HandleFunc("POST /api/chats/{chatID}/send/{userID}", s.handleSendMessage)
	mux.HandleFunc("PUT /api/chats/status/{userID}", s.handleUpdateStatus)
	mux.HandleFunc("POST /api/chats/upload", s.handleUpload)

	// Items
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("GET /api/items/status/{status}", s.handleListItemsByStatus)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("PUT /api/items/{itemID}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{itemID}", s.handleDeleteItem)
	mux.HandleFunc("PUT /api/items/{itemID}/send", s.handleSendItem)

	// Static attachment serving
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.uploads.Dir()))))

	if s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, promhttp.Handler())
	}
}

// corsMiddleware applies the configured origin allowlist. An empty list
// allows any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.cfg.Server.CORSOrigins) == 0 || slices.Contains(s.cfg.Server.CORSOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Server.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(shutdownCtx)
	s.broadcaster.Close()
	return err
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"status":    "Server is running",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Database reachability doubles as the readiness signal.
	if _, err := s.store.ListConversations(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		respondError(w, http.StatusInternalServerError, "database unreachable")
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

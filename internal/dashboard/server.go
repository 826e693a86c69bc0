// Package dashboard serves the spyglass HTTP API: connection state and
// plugin lists for rendering, selection and enablement actions, export
// bundles, and the websocket event and console streams.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/conn"
	"github.com/spyglass-dev/spyglass/internal/console"
	"github.com/spyglass-dev/spyglass/internal/plugins"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
)

// Server is the dashboard HTTP server over the connection store and
// the selector pipeline.
type Server struct {
	config    *config.Config
	store     *conn.Store
	selectors *conn.Selectors
	registry  *plugins.Registry
	consoles  *console.Manager

	// Queue returns the pending plugin message queue consulted for
	// exports. Nil when no transport layer is wired in.
	Queue func() conn.MessageQueue

	httpServer *http.Server
}

// NewServer creates a dashboard server.
func NewServer(cfg *config.Config, store *conn.Store, sel *conn.Selectors, reg *plugins.Registry, consoles *console.Manager) *Server {
	return &Server{
		config:    cfg,
		store:     store,
		selectors: sel,
		registry:  reg,
		consoles:  consoles,
	}
}

// queue returns the pending message queue, or nil.
func (s *Server) queue() conn.MessageQueue {
	if s.Queue == nil {
		return nil
	}
	return s.Queue()
}

// Handler builds the route table. Split out from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/healthz", s.withCORS(s.handleHealthz))
	mux.HandleFunc("/api/version", s.withCORS(s.handleVersion))
	mux.HandleFunc("/api/state", s.withCORS(s.handleState))
	mux.HandleFunc("/api/plugins", s.withCORS(s.handlePlugins))
	mux.HandleFunc("/api/select-device", s.withCORS(s.handleSelectDevice))
	mux.HandleFunc("/api/select-client", s.withCORS(s.handleSelectClient))
	mux.HandleFunc("/api/select-plugin", s.withCORS(s.handleSelectPlugin))
	mux.HandleFunc("/api/plugins/enable", s.withCORS(s.handlePluginEnable(true)))
	mux.HandleFunc("/api/plugins/disable", s.withCORS(s.handlePluginEnable(false)))
	mux.HandleFunc("/api/plugins/device/enable", s.withCORS(s.handleDevicePluginEnable(true)))
	mux.HandleFunc("/api/plugins/device/disable", s.withCORS(s.handleDevicePluginEnable(false)))
	mux.HandleFunc("/api/export", s.withCORS(s.handleExport))

	mux.HandleFunc("/ws", s.handleEventsWebSocket)
	mux.HandleFunc("/ws/console", s.handleConsoleWebSocket)

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.GetBindAddress(), s.config.GetPort()),
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	fmt.Printf("Dashboard server listening on http://localhost:%d\n", s.config.GetPort())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// allowedOrigin reports whether a browser origin may talk to the API.
// Non-browser clients send no Origin header and are always allowed.
func (s *Server) allowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	port := s.config.GetPort()
	return origin == fmt.Sprintf("http://localhost:%d", port) ||
		origin == fmt.Sprintf("http://127.0.0.1:%d", port)
}

// withCORS wraps a handler with CORS headers for the dashboard UI.
func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.allowedOrigin(origin) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h(w, r)
	}
}

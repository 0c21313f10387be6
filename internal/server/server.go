// Package server exposes the avoidance loop over HTTP: the latest command,
// a telemetry websocket, an annotated MJPEG stream and the flight log.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/detector"
	"github.com/ayusman/avoid/internal/server/api"
	"github.com/ayusman/avoid/internal/store"
	"github.com/ayusman/avoid/internal/telemetry"
)

// Config holds the server configuration. Endpoints whose dependency is nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Publisher *telemetry.Publisher
	Frames    *telemetry.FrameSlot
	Detection *detector.Config
	Logger    zerolog.Logger

	// BroadcastInterval is how often websocket clients are checked for a
	// newer snapshot. Zero means DefaultBroadcastInterval.
	BroadcastInterval time.Duration
}

// Server is the HTTP front end.
type Server struct {
	config    Config
	mux       *http.ServeMux
	start     time.Time
	telemetry *TelemetryHandler
	http      *http.Server
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Publisher != nil {
		s.mux.HandleFunc("/api/command", s.handleCommand)

		s.telemetry = NewTelemetryHandler(s.config.Publisher, s.config.BroadcastInterval, s.config.Logger)
		s.mux.Handle("/api/telemetry", s.telemetry)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Detection != nil {
		s.mux.HandleFunc("/api/config", s.handleConfig)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store, s.config.Logger)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Publisher != nil {
		response["seq"] = s.config.Publisher.Seq()
	}

	writeJSON(w, response)
}

// handleCommand returns the latest snapshot. Front ends poll this to drive
// their attitude display.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, s.config.Publisher.Latest())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.config.Detection)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until Shutdown is called. It returns nil at
// once when Shutdown has already run.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. ln is closed on
// return.
func (s *Server) Serve(ln net.Listener) error {
	s.config.Logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the telemetry broadcaster and gracefully stops the listener.
// It may be called before, during or after ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	return s.http.Shutdown(ctx)
}

// Close stops background work without touching the listener.
func (s *Server) Close() {
	if s.telemetry != nil {
		s.telemetry.Close()
	}
}

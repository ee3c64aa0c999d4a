// Package server exposes the panel surface over HTTP: the assembled
// panel document, the bundle resources, the websocket message channel,
// and a small control API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/panel"
	"github.com/simview/simview/internal/state"
)

// Config holds server configuration.
type Config struct {
	Port        int
	AllowAll    bool // allow all CORS origins (dev mode)
	SerialLimit int  // default page size for serial history
}

// Server hosts the simulator panel.
type Server struct {
	cfg        Config
	registry   *panel.Registry
	surface    *Surface
	bundle     *bundle.Bundle
	store      *state.Store
	router     chi.Router
	httpServer *http.Server
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// placeholderHTML is served before the first Load publishes a
// document.
const placeholderHTML = `<!DOCTYPE html>
<html><head><title>Simulator</title></head>
<body><p>No program loaded. POST a compiled program to /api/load.</p></body></html>`

// New creates a panel server with all dependencies.
func New(cfg Config, registry *panel.Registry, surface *Surface, b *bundle.Bundle, store *state.Store) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		surface:  surface,
		bundle:   b,
		store:    store,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// The websocket channel is long-lived, so the request timeout
	// applies to every other route only.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Get("/", s.serveIndex)
		r.Mount(bundle.MountPath, http.StripPrefix(bundle.MountPath, s.bundle.Handler()))

		r.Get("/api/panel", s.handlePanelStatus)
		r.Delete("/api/panel", s.handlePanelDispose)
		r.Post("/api/load", s.handleLoad)
		r.Post("/api/stop", s.handleStop)
		r.Get("/api/serial", s.handleSerial)
	})

	r.Get("/ws/sim", s.handleWebSocket)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// serveIndex serves the current panel document.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	html := s.surface.HTML()
	if html == "" {
		html = placeholderHTML
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleWebSocket attaches a page to the message channel. Inbound
// frames go to the registry; the websocket itself does not interpret
// them.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	s.surface.attach(conn)
	defer func() {
		s.surface.detach(conn)
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		if err := s.registry.Dispatch(r.Context(), msg); err != nil {
			log.Printf("server: dispatch: %v", err)
		}
	}
}

type panelStatusResponse struct {
	panel.Status
	Connections int `json:"connections"`
}

func (s *Server) handlePanelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, panelStatusResponse{
		Status:      s.registry.Status(),
		Connections: s.surface.Connections(),
	})
}

func (s *Server) handlePanelDispose(w http.ResponseWriter, r *http.Request) {
	s.surface.Dispose()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disposed"})
}

// handleLoad shows the panel if needed, then loads the posted program.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	if err := s.registry.Show(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.registry.Load(ctx, string(body)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.registry.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Stop(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleSerial(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.SerialLimit
	if limit <= 0 {
		limit = 100
	}

	lines, err := s.store.RecentSerial(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if lines == nil {
		lines = []state.SerialLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("simview panel listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

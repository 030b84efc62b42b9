// Package httpapi serves the read-only board API and the WebSocket event
// feed behind `wb serve`. It never mutates sessions; orchestration stays
// with the local CLI and TUI.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/brianly1003/workbench/internal/board"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
	"github.com/brianly1003/workbench/internal/hub"
	"github.com/brianly1003/workbench/internal/pairing"
	"github.com/brianly1003/workbench/internal/reconcile"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure for production)
	},
}

// Server is the board API HTTP/WebSocket server.
type Server struct {
	engine     *reconcile.Engine
	projection *board.Projection
	store      ports.SessionStore
	hub        ports.EventHub
	qr         *pairing.QRGenerator
	logger     *slog.Logger

	addr       string
	httpServer *http.Server
}

// NewServer creates a new board API server.
func NewServer(
	host string,
	port int,
	engine *reconcile.Engine,
	projection *board.Projection,
	store ports.SessionStore,
	eventHub ports.EventHub,
	qr *pairing.QRGenerator,
	logger *slog.Logger,
) *Server {
	return &Server{
		engine:     engine,
		projection: projection,
		store:      store,
		hub:        eventHub,
		qr:         qr,
		logger:     logger,
		addr:       fmt.Sprintf("%s:%d", host, port),
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Read-only REST endpoints
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/board", s.handleBoard).Methods("GET")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{name}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/orphans", s.handleOrphans).Methods("GET")
	api.HandleFunc("/pair", s.handlePair).Methods("GET")
	api.HandleFunc("/pair.png", s.handlePairPNG).Methods("GET")

	// WebSocket endpoint for the event feed
	router.HandleFunc("/ws", s.handleWebSocket)

	handler := corsMiddleware(s.loggingMiddleware(router))

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Starting board API server", "addr", s.addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping board API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "workbench",
		"project":   s.engine.Project().Name,
		"timestamp": time.Now().Unix(),
	})
}

// handleBoard handles GET /api/v1/board
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.projection.Refresh(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, b)
}

// handleListSessions handles GET /api/v1/sessions with an optional
// ?column= filter.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	b, err := s.projection.Refresh(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	column := r.URL.Query().Get("column")
	cards := make([]board.Card, 0, b.CardCount())
	for _, col := range b.Columns {
		if column != "" && col.Name != column {
			continue
		}
		cards = append(cards, col.Cards...)
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": cards,
		"count":    len(cards),
	})
}

// handleGetSession handles GET /api/v1/sessions/{name}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	b, err := s.projection.Refresh(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var card *board.Card
	for i := range b.Columns {
		for j := range b.Columns[i].Cards {
			if b.Columns[i].Cards[j].Session.Name == name {
				card = &b.Columns[i].Cards[j]
			}
		}
	}
	if card == nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("session %q not found", name))
		return
	}

	defs, err := s.store.ListFieldDefs(r.Context(), s.engine.Project().ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	values, err := s.store.GetFieldValues(r.Context(), card.Session.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	comments, err := s.store.ListComments(r.Context(), card.Session.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fields := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		fields = append(fields, map[string]interface{}{
			"name":        def.Name,
			"description": def.Description,
			"value":       values[def.ID],
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session":  card.Session,
		"runtime":  card.Runtime,
		"fields":   fields,
		"comments": comments,
	})
}

// handleOrphans handles GET /api/v1/orphans. The sweep goes through the
// engine so it never overlaps a running operation.
func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Sweep(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrEngineStopped {
			status = http.StatusServiceUnavailable
		}
		s.respondError(w, status, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"report": report,
		"empty":  report.Empty(),
	})
}

// handlePair handles GET /api/v1/pair
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.qr.Link())
}

// handlePairPNG handles GET /api/v1/pair.png
func (s *Server) handlePairPNG(w http.ResponseWriter, r *http.Request) {
	png, err := s.qr.GeneratePNG(512)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleWebSocket handles WebSocket connections for the event feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket", "error", err)
		return
	}

	client := NewClient(conn, func(id string) {
		s.hub.Unsubscribe(id)
		s.logger.Info("WebSocket client disconnected", "client_id", id)
	})

	sub := hub.NewFilteredSubscriber(NewClientSubscriber(client))
	sub.SubscribeProject(s.engine.Project().ID)
	s.hub.Subscribe(sub)
	client.Start()

	s.logger.Info("WebSocket client connected",
		"client_id", client.ID(),
		"remote", r.RemoteAddr,
	)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// statusRecorder captures the response code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware writes one access log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection; wrapping breaks them.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		// Allow local development origins
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"markestedt/macroflow/config"
	"markestedt/macroflow/macro"
	"markestedt/macroflow/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server only listens on localhost
	},
}

// Controller is the engine surface the HTTP API drives
type Controller interface {
	Stats() macro.Status
	Name() string
	Document() *macro.Document
	LoadDocument(doc *macro.Document) error
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
}

// Server represents the web server
type Server struct {
	ctrl   Controller
	db     *storage.DB
	config *config.Config
	port   int
	hub    *Hub
	logger *slog.Logger

	// runCtx outlives requests; playback started over HTTP is bound to it
	runCtx context.Context

	mu             sync.RWMutex
	onConfigChange func(*config.Config)
	onMacroChange  func(*macro.Document)
}

// NewServer creates a new web server. db may be nil when history is disabled.
func NewServer(ctrl Controller, db *storage.DB, cfg *config.Config, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	return &Server{
		ctrl:   ctrl,
		db:     db,
		config: cfg,
		port:   port,
		hub:    NewHub(logger, 0, 0),
		logger: logger,
		runCtx: context.Background(),
	}
}

// OnConfigChange registers fn to run after a configuration update is saved
func (s *Server) OnConfigChange(fn func(*config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConfigChange = fn
}

// OnMacroChange registers fn to run after a macro is loaded over HTTP
func (s *Server) OnMacroChange(fn func(*macro.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMacroChange = fn
}

// Handler returns the HTTP routes
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/macro", s.handleMacro)
	mux.HandleFunc("/api/control/", s.handleControl)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start serves until ctx is canceled
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.runCtx = ctx
	go s.hub.Run(ctx)

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Starting web server", "port", s.port, "url", fmt.Sprintf("http://localhost:%d", s.port))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig updates the configuration (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// BroadcastStatus sends an engine snapshot to all connected clients
func (s *Server) BroadcastStatus(st macro.Status) {
	s.hub.BroadcastMessage(MessageTypeStatus, st)
}

// BroadcastRun sends a finished run record to all connected clients
func (s *Server) BroadcastRun(r *storage.Run) {
	s.hub.BroadcastMessage(MessageTypeRun, r)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := newClient(s.hub, conn, r.RemoteAddr)

	// New clients get the current state before any broadcast
	if snapshot, err := encodeEnvelope(MessageTypeStatus, s.ctrl.Stats()); err == nil {
		client.send <- snapshot
	}

	if !s.hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

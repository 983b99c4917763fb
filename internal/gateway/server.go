// Package gateway exposes the coaching API over HTTP and a per-session
// websocket event feed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/rangecoach/internal/config"
	"github.com/soyeahso/rangecoach/internal/logging"
	"github.com/soyeahso/rangecoach/internal/pipeline"
	"github.com/soyeahso/rangecoach/internal/rag"
	"github.com/soyeahso/rangecoach/internal/store"
	"github.com/soyeahso/rangecoach/internal/version"
)

// Server is the rangecoach API server.
type Server struct {
	cfg      config.GatewayConfig
	log      *logging.Logger
	sessions *store.SessionStore
	orch     *pipeline.Orchestrator
	indexer  *rag.Indexer
	index    *rag.Store
	hub      *Hub

	mu          sync.Mutex
	lastIndexed time.Time
	lastChunks  int

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates the API server over its collaborators.
func New(cfg config.GatewayConfig, sessions *store.SessionStore, orch *pipeline.Orchestrator, indexer *rag.Indexer, index *rag.Store, log *logging.Logger) *Server {
	allowedOrigins := cfg.AllowedOrigins
	return &Server{
		cfg:      cfg,
		log:      log.Sub("gateway"),
		sessions: sessions,
		orch:     orch,
		indexer:  indexer,
		index:    index,
		hub:      NewHub(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin validates websocket Origin headers. Requests with no
// Origin header (non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler builds the full HTTP handler with routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs; cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// noteIndexed records the outcome of an index rebuild for status reporting.
func (s *Server) noteIndexed(chunks int) {
	s.mu.Lock()
	s.lastIndexed = time.Now().UTC()
	s.lastChunks = chunks
	s.mu.Unlock()
}

func (s *Server) indexStatus() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIndexed, s.lastChunks
}

// Version reports the running build version.
func (s *Server) Version() string { return version.Version }

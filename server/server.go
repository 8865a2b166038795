package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emaforlin/ivr-ws-service/config"
	"github.com/emaforlin/ivr-ws-service/logger"
)

// SessionDrainer coordinates WebSocket session shutdown ahead of the HTTP
// server's own drain.
type SessionDrainer interface {
	BeginShutdown()
	ActiveCount() int
	CloseAll() int
}

// Server represents the HTTP server with graceful shutdown
type Server struct {
	config     *config.Settings
	httpServer *http.Server
	mux        *http.ServeMux
	sessions   SessionDrainer
	log        *logger.Logger
}

// New creates a new server instance
func New(cfg *config.Settings, sessions SessionDrainer, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	return &Server{
		config:   cfg,
		mux:      mux,
		sessions: sessions,
		log:      log,
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// RegisterHandler registers a handler for the given pattern
func (s *Server) RegisterHandler(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// RegisterHandlerWithMiddleware registers a handler with middleware
func (s *Server) RegisterHandlerWithMiddleware(pattern string, handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) {
	// Apply middlewares in reverse order
	finalHandler := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		finalHandler = middlewares[i](finalHandler)
	}
	s.mux.HandleFunc(pattern, finalHandler)
}

// Start runs the server until SIGINT or SIGTERM arrives, then drains
// WebSocket sessions and shuts the listener down gracefully.
func (s *Server) Start() error {
	go func() {
		s.log.Info().
			Str("addr", s.config.Addr()).
			Str("websocket_endpoint", s.config.WebSocketURL()).
			Str("health_check", s.config.HTTPURL("/health")).
			Msg("Starting server")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.shutdown()
}

// shutdown rejects new sessions, closes active ones and drains the listener.
func (s *Server) shutdown() error {
	s.log.Info().Msg("Initiating graceful shutdown - setting shutdown flag")
	s.sessions.BeginShutdown()

	if active := s.sessions.ActiveCount(); active > 0 {
		s.log.Info().
			Int("active_sessions", active).
			Msg("Closing active WebSocket connections")

		closed := s.sessions.CloseAll()
		s.log.Info().
			Int("closed_count", closed).
			Msg("WebSocket connections closed")
	}

	// Give outstanding requests a deadline to complete
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	s.log.Info().Msg("Server exited")
	return nil
}

// Stop stops the server immediately
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

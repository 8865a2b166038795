package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/emaforlin/ivr-ws-service/config"
	"github.com/emaforlin/ivr-ws-service/handlers"
	"github.com/emaforlin/ivr-ws-service/logger"
	"github.com/emaforlin/ivr-ws-service/middleware"
	"github.com/emaforlin/ivr-ws-service/publisher"
	"github.com/emaforlin/ivr-ws-service/server"
	"github.com/emaforlin/ivr-ws-service/websocket"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// The configured logger needs valid settings, so configuration
		// failures are reported through a bare stderr logger.
		fallback := fallbackLogger()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(cfg)

	log.Info().
		Str("app_name", cfg.AppName).
		Str("version", cfg.AppVersion).
		Str("environment", cfg.Environment.String()).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel.String()).
		Str("log_format", cfg.LogFormat.String()).
		Msg("Application starting")

	// Session events go to NATS when a URL is configured, otherwise they are
	// discarded.
	var pub publisher.Publisher = publisher.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATS.URL, log.Named("publisher"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize NATS publisher")
		}
		pub = natsPub
	}
	defer pub.Close()

	manager := websocket.NewManager(log.Named("sessions"))
	upgrader := websocket.NewUpgrader(cfg)

	srv := server.New(cfg, manager, log.Named("server"))

	rootHandler := handlers.NewRootHandler(cfg)
	healthHandler := handlers.NewHealthHandler()

	requestID := middleware.RequestID(log)

	// Register routes with middleware
	srv.RegisterHandlerWithMiddleware("/",
		rootHandler.ServeHTTP,
		requestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS,
	)

	srv.RegisterHandlerWithMiddleware("/health",
		healthHandler.ServeHTTP,
		requestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS,
	)

	// Register WebSocket endpoint
	srv.RegisterHandlerWithMiddleware(cfg.WebSocket.Path,
		websocket.HandleWebSocket(upgrader, manager, pub),
		requestID,
		middleware.WebSocketLogger,
		middleware.Recovery,
	)

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Application shutting down")
}

// fallbackLogger returns a bare stderr logger for failures that happen
// before the configured logger exists.
func fallbackLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

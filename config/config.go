package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds all configuration for the application. It is populated once
// from environment variables at startup and never mutated afterwards; every
// component receives it (or the piece it needs) explicitly.
type Settings struct {
	// AppName is the human-readable service name reported by the root
	// endpoint and the startup log.
	// Env: APP_NAME
	AppName string `env:"APP_NAME" envDefault:"Agentic AI IVR Demo"`

	// AppVersion is the semantic version reported by the root endpoint.
	// Env: APP_VERSION
	AppVersion string `env:"APP_VERSION" envDefault:"0.1.0"`

	// Host is the interface the server binds to.
	// Env: HOST
	Host string `env:"HOST" envDefault:"0.0.0.0"`

	// Port is the TCP port the server binds to. Must be in 1–65535.
	// Env: PORT
	Port int `env:"PORT" envDefault:"8000"`

	// LogLevel is the minimum severity that gets emitted.
	// Env: LOG_LEVEL (DEBUG, INFO, WARNING, ERROR, CRITICAL)
	LogLevel LogLevel `env:"LOG_LEVEL" envDefault:"INFO"`

	// LogFormat selects structured JSON or human-readable text output.
	// Env: LOG_FORMAT (json, text)
	LogFormat LogFormat `env:"LOG_FORMAT" envDefault:"text"`

	// Environment names the deployment stage.
	// Env: ENVIRONMENT (development, staging, production)
	Environment Environment `env:"ENVIRONMENT" envDefault:"development"`

	Server    ServerSettings    `envPrefix:"SERVER_"`
	WebSocket WebSocketSettings `envPrefix:"WS_"`
	NATS      NATSSettings      `envPrefix:"NATS_"`
}

// ServerSettings holds HTTP server timeouts. These apply to plain HTTP
// requests only; gorilla clears the connection deadlines when it hijacks a
// WebSocket upgrade, so open sessions are not bounded by them.
type ServerSettings struct {
	// Env: SERVER_READ_TIMEOUT
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	// Env: SERVER_WRITE_TIMEOUT
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"2s"`
	// ShutdownTimeout caps how long a graceful shutdown waits for in-flight
	// HTTP requests after open WebSocket sessions have been closed.
	// Env: SERVER_SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// WebSocketSettings holds WebSocket-specific configuration.
type WebSocketSettings struct {
	// Path is the route the echo endpoint is served on. Configurable so a
	// deployment can pick /ws, /ws/test, or anything else without a code
	// change, as long as one value is used consistently.
	// Env: WS_PATH
	Path string `env:"PATH" envDefault:"/ws/test"`

	// CheckOrigin enables the browser same-origin check on upgrade
	// handshakes. When false (the default) all origins are accepted.
	// Env: WS_CHECK_ORIGIN
	CheckOrigin bool `env:"CHECK_ORIGIN" envDefault:"false"`

	// Env: WS_READ_BUFFER_SIZE
	ReadBufferSize int `env:"READ_BUFFER_SIZE" envDefault:"1024"`
	// Env: WS_WRITE_BUFFER_SIZE
	WriteBufferSize int `env:"WRITE_BUFFER_SIZE" envDefault:"1024"`
	// Env: WS_HANDSHAKE_TIMEOUT
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
}

// NATSSettings holds the optional event bus configuration.
type NATSSettings struct {
	// URL is the NATS server to publish session events to. When empty
	// (the default) event publishing is disabled entirely.
	// Env: NATS_URL
	URL string `env:"URL"`
}

// Load reads Settings from the environment, applying the documented defaults
// for absent variables. A variable that is present but cannot be parsed into
// its declared type, or that fails validation, makes Load return an error
// identifying the offending value; the caller is expected to treat that as
// fatal before binding any socket.
func Load() (*Settings, error) {
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants that plain type parsing cannot express.
func (s *Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", s.Port)
	}
	if !strings.HasPrefix(s.WebSocket.Path, "/") {
		return fmt.Errorf("WS_PATH must begin with %q, got %q", "/", s.WebSocket.Path)
	}
	if s.WebSocket.ReadBufferSize <= 0 {
		return fmt.Errorf("WS_READ_BUFFER_SIZE must be positive, got %d", s.WebSocket.ReadBufferSize)
	}
	if s.WebSocket.WriteBufferSize <= 0 {
		return fmt.Errorf("WS_WRITE_BUFFER_SIZE must be positive, got %d", s.WebSocket.WriteBufferSize)
	}
	return nil
}

// Addr returns the host:port pair the server binds to.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// HTTPURL returns the HTTP URL for the given endpoint path.
func (s *Settings) HTTPURL(endpoint string) string {
	return "http://" + s.Addr() + endpoint
}

// WebSocketURL returns the WebSocket URL of the echo endpoint.
func (s *Settings) WebSocketURL() string {
	return "ws://" + s.Addr() + s.WebSocket.Path
}

package websocket

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emaforlin/ivr-ws-service/config"
	"github.com/emaforlin/ivr-ws-service/logger"
	"github.com/emaforlin/ivr-ws-service/publisher"
)

// echoPrefix is prepended to every echoed text payload.
const echoPrefix = "Message text was: "

// NewUpgrader creates a WebSocket upgrader with the given configuration.
func NewUpgrader(cfg *config.Settings) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
	}
	if !cfg.WebSocket.CheckOrigin {
		// Allow all origins when origin checking is disabled. Leaving
		// CheckOrigin nil enables gorilla's same-origin policy instead.
		u.CheckOrigin = func(*http.Request) bool { return true }
	}
	return u
}

// HandleWebSocket creates the echo endpoint handler. Each connection is
// tracked in manager from before the upgrade handshake until its read loop
// exits, and its lifecycle is reported through pub.
func HandleWebSocket(upgrader websocket.Upgrader, manager *Manager, pub publisher.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		session := NewSession(r.RemoteAddr)
		if err := manager.Register(session); err != nil {
			log.Warn().
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejecting connection during shutdown")
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer manager.Unregister(session)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			session.CloseWith(Closure{Reason: CloseFault, Err: err})
			log.Error().
				Err(err).
				Str("error_type", fmt.Sprintf("%T", err)).
				Msg("Failed to upgrade connection")
			return
		}
		session.Open(conn)
		defer conn.Close()

		clientHost, clientPort := splitHostPort(r.RemoteAddr)
		slog := &logger.Logger{Logger: log.With().
			Str("session_id", session.ID).
			Str("client_host", clientHost).
			Str("client_port", clientPort).
			Logger()}

		slog.Info().Msg("WebSocket connection established")
		publishEvent(pub, slog, session, publisher.EventSessionStarted, publisher.SessionEventPayload{})

		closure := runEchoLoop(conn, session, slog, pub)
		session.CloseWith(closure)

		if closure.Reason == CloseGraceful {
			slog.Info().Msg("WebSocket client disconnected")
		} else {
			slog.Error().
				Err(closure.Err).
				Str("error_type", fmt.Sprintf("%T", closure.Err)).
				Str("stack", string(debug.Stack())).
				Msg("WebSocket error occurred")
		}

		endedPayload := publisher.SessionEventPayload{
			Reason:   closure.Reason.String(),
			Messages: session.EchoCount(),
		}
		if closure.Err != nil {
			endedPayload.Detail = closure.Err.Error()
		}
		publishEvent(pub, slog, session, publisher.EventSessionEnded, endedPayload)
	}
}

// runEchoLoop reads text frames and writes each echo response before waiting
// for the next frame, so responses leave in arrival order. It returns the
// closure describing why reading stopped.
func runEchoLoop(conn *websocket.Conn, session *Session, slog *logger.Logger, pub publisher.Publisher) (closure Closure) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error().
				Str("stack", string(debug.Stack())).
				Msgf("Panic in WebSocket handler: %v", rec)
			closure = Closure{Reason: CloseFault, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return classifyReadError(session, err)
		}

		if messageType != websocket.TextMessage {
			msg := websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "text frames only")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return Closure{
				Reason: CloseFault,
				Err:    fmt.Errorf("unsupported message type %d", messageType),
			}
		}

		slog.Debug().
			Int("message_length", len(data)).
			Msg("Received WebSocket message")

		response := echoPrefix + string(data)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(response)); err != nil {
			return Closure{Reason: CloseFault, Err: err}
		}

		slog.Debug().
			Int("response_length", len(response)).
			Msg("Sent WebSocket response")

		session.RecordEcho()
		publishEvent(pub, slog, session, publisher.EventSessionEcho, publisher.SessionEventPayload{
			MessageLength:  len(data),
			ResponseLength: len(response),
		})
	}
}

// classifyReadError maps a read failure onto the session's closure. Client
// close frames and server-initiated closes are graceful; everything else,
// including abrupt connection loss, is a fault.
func classifyReadError(session *Session, err error) Closure {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return Closure{Reason: CloseGraceful}
	}
	if session.ServerClosing() {
		return Closure{Reason: CloseGraceful}
	}
	return Closure{Reason: CloseFault, Err: err}
}

func publishEvent(pub publisher.Publisher, slog *logger.Logger, session *Session, eventType string, payload publisher.SessionEventPayload) {
	host, port := splitHostPort(session.RemoteAddr)
	event := publisher.SessionEvent{
		SessionID:  session.ID,
		ClientHost: host,
		ClientPort: port,
		Type:       eventType,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := pub.PublishSessionEvent(event); err != nil {
		slog.Warn().
			Err(err).
			Str("event_type", eventType).
			Msg("Failed to publish session event")
	}
}

func splitHostPort(remoteAddr string) (host, port string) {
	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr, "0"
	}
	return host, port
}

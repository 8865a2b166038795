package websocket

import (
	"errors"
	"sync"

	"github.com/emaforlin/ivr-ws-service/logger"
)

// ErrShuttingDown is returned by Register once BeginShutdown has been called.
var ErrShuttingDown = errors.New("connection manager is shutting down")

// Manager tracks active sessions and coordinates their shutdown.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	shuttingDown bool
	log          *logger.Logger
}

// NewManager creates an empty session manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Register adds a session to tracking. It fails with ErrShuttingDown once
// shutdown has begun so callers can refuse the connection before upgrading.
func (m *Manager) Register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return ErrShuttingDown
	}
	m.sessions[s.ID] = s

	m.log.Debug().
		Str("session_id", s.ID).
		Int("active_sessions", len(m.sessions)).
		Msg("Session registered")
	return nil
}

// Unregister removes a session from tracking. Unknown sessions are ignored.
func (m *Manager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return
	}
	delete(m.sessions, s.ID)

	m.log.Debug().
		Str("session_id", s.ID).
		Int("active_sessions", len(m.sessions)).
		Msg("Session removed")
}

// ActiveCount returns the number of tracked sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IsShuttingDown reports whether the manager is in shutdown mode.
func (m *Manager) IsShuttingDown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shuttingDown
}

// BeginShutdown makes all future Register calls fail. Sessions already
// tracked stay open until CloseAll.
func (m *Manager) BeginShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return
	}
	m.shuttingDown = true
	m.log.Info().Msg("Connection manager entering shutdown mode - rejecting new connections")
}

// CloseAll sends a going-away close frame to every open session and flags
// sessions still completing their handshake so they close right after the
// upgrade. It returns the number of sessions notified without a write error.
// Each session's read loop observes the close and unregisters itself.
func (m *Manager) CloseAll() int {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	closed := 0
	for _, s := range sessions {
		if err := s.beginServerClose(); err != nil {
			m.log.Warn().
				Str("session_id", s.ID).
				Err(err).
				Msg("Error closing WebSocket")
			continue
		}
		closed++
	}
	return closed
}

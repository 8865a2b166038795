package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a control frame write may block.
const writeWait = 10 * time.Second

// closeGracePeriod is how long a server-initiated close waits for the
// client's close response before the read deadline releases the read loop.
const closeGracePeriod = time.Second

// State identifies where a session is in its lifecycle.
type State int

const (
	// StateConnecting covers the window between the HTTP request arriving
	// and the upgrade handshake completing.
	StateConnecting State = iota
	// StateOpen means the handshake succeeded and frames may flow.
	StateOpen
	// StateClosed is terminal. The closure records how the session ended.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason distinguishes expected closures from faulted ones.
type CloseReason int

const (
	// CloseGraceful covers client close frames and server-initiated closes.
	CloseGraceful CloseReason = iota
	// CloseFault covers protocol violations, unsupported frames and
	// unexpected connection loss.
	CloseFault
)

func (r CloseReason) String() string {
	if r == CloseFault {
		return "fault"
	}
	return "graceful"
}

// Closure records how a session ended. Err is nil for graceful closures.
type Closure struct {
	Reason CloseReason
	Err    error
}

// Session tracks one WebSocket connection from handshake to closure.
type Session struct {
	ID         string
	RemoteAddr string

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	openedAt    time.Time
	echoes      int
	closure     Closure
	serverClose bool
}

// NewSession returns a Session in the connecting state. The connection is
// attached with Open once the upgrade handshake succeeds.
func NewSession(remoteAddr string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		state:      StateConnecting,
	}
}

// Open attaches the upgraded connection and moves the session to the open
// state. If the server began closing while the handshake was still
// completing, the going-away frame is sent as soon as the socket attaches.
func (s *Session) Open(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.state = StateOpen
	s.openedAt = time.Now()
	notify := s.serverClose
	s.mu.Unlock()

	if notify {
		_ = s.sendServerClose(conn)
	}
}

// OpenedAt returns when the session entered the open state. Zero until then.
func (s *Session) OpenedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openedAt
}

// RecordEcho counts one completed echo round trip.
func (s *Session) RecordEcho() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoes++
}

// EchoCount returns the number of completed echo round trips.
func (s *Session) EchoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echoes
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseWith moves the session to the closed state. The first closure wins;
// later calls are ignored.
func (s *Session) CloseWith(c Closure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.closure = c
}

// Closure reports how the session ended. ok is false until the session
// reaches the closed state.
func (s *Session) Closure() (c Closure, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		return Closure{}, false
	}
	return s.closure, true
}

// ServerClosing reports whether the server initiated this session's close.
func (s *Session) ServerClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverClose
}

// beginServerClose marks the session as being closed by the server. Open
// sessions are sent the going-away close frame immediately; sessions still
// completing their handshake only get the flag, and Open sends the frame
// once the socket is attached. Read errors observed afterwards classify as
// graceful.
func (s *Session) beginServerClose() error {
	s.mu.Lock()
	if s.state == StateClosed || s.serverClose {
		s.mu.Unlock()
		return nil
	}
	s.serverClose = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.sendServerClose(conn)
}

// sendServerClose writes the going-away frame and arms a short read deadline
// so the session's read loop wakes up even if the client never responds.
func (s *Session) sendServerClose(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
	return err
}

package publisher

// Session event types. The value becomes the last token of the NATS subject.
const (
	EventSessionStarted = "started"
	EventSessionEcho    = "echo"
	EventSessionEnded   = "ended"
)

// SessionEvent describes one step of a WebSocket session's lifecycle.
// Timestamp is unix milliseconds.
type SessionEvent struct {
	SessionID  string              `json:"session_id"`
	ClientHost string              `json:"client_host"`
	ClientPort string              `json:"client_port"`
	Type       string              `json:"type"`
	Payload    SessionEventPayload `json:"payload"`
	Timestamp  int64               `json:"timestamp"`
}

// SessionEventPayload carries the per-type detail: message and response
// lengths for echo events, the closure reason, fault detail and echoed
// message count for ended events.
type SessionEventPayload struct {
	MessageLength  int    `json:"message_length,omitempty"`
	ResponseLength int    `json:"response_length,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Messages       int    `json:"messages,omitempty"`
}

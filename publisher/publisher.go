package publisher

// Publisher emits session lifecycle events for downstream consumers.
// Implementations must be safe for concurrent use.
type Publisher interface {
	PublishSessionEvent(event SessionEvent) error
	Close()
}

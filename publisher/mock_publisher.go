package publisher

import "sync"

// MockEventPublisher records published events in memory. It is used in tests
// to assert on the event stream without a running NATS server.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []SessionEvent
	closed bool
}

// PublishSessionEvent implements Publisher.
func (m *MockEventPublisher) PublishSessionEvent(event SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Close implements Publisher.
func (m *MockEventPublisher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Events returns a copy of the recorded events in publish order.
func (m *MockEventPublisher) Events() []SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Closed reports whether Close has been called.
func (m *MockEventPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// NopPublisher discards all events. It backs deployments that run without a
// NATS server configured.
type NopPublisher struct{}

// PublishSessionEvent implements Publisher.
func (NopPublisher) PublishSessionEvent(SessionEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/emaforlin/ivr-ws-service/logger"
)

type NATSPublisher struct {
	conn *nats.Conn
	log  *logger.Logger
}

// NewNATSPublisher connects to the NATS server at natsURL and returns a
// Publisher that emits session events on "ivr.session.<type>" subjects.
func NewNATSPublisher(natsURL string, log *logger.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("ivr-ws-service"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", natsURL).Msg("Connected to NATS")

	return &NATSPublisher{
		conn: conn,
		log:  log,
	}, nil
}

// PublishSessionEvent implements Publisher.
func (n *NATSPublisher) PublishSessionEvent(event SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := subjectFor(event)

	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	n.log.Debug().
		Str("subject", subject).
		Str("session_id", event.SessionID).
		Msg("Published session event to NATS")
	return nil
}

// Close implements Publisher.
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		n.conn.Close()
		n.log.Info().Msg("NATS connection closed")
	}
}

func subjectFor(event SessionEvent) string {
	return fmt.Sprintf("ivr.session.%s", event.Type)
}

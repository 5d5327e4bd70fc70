package bus

import "context"

// Header keys stamped on every relayed event.
const (
	HeaderMessageID = "x-message-id"
	HeaderEventType = "x-event-type"
)

// IntegrationEvent is an Event that is also mirrored to an external broker when the bus
// has a relay configured. Topic selects the destination subject/topic/routing key.
type IntegrationEvent interface {
	Event
	Topic() string
}

// Keyed lets an integration event choose its partition or message key.
type Keyed interface {
	Key() string
}

// PublishOptions controls integration event publishing.
type PublishOptions struct {
	TopicOverride string
	Key           string
	Headers       map[string]string
}

// EventPublisher publishes integration events to a broker. The bus relay calls it once per
// attempt; adapters map it to NATS, RabbitMQ, Kafka, Redis or memory.
type EventPublisher interface {
	PublishIntegration(ctx context.Context, evt IntegrationEvent, opts PublishOptions) error
}

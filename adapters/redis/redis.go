package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// Envelope is the wire format: Pub/Sub has no headers, so they travel with the payload.
type Envelope struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Topic   string            `json:"topic"`
	Key     string            `json:"key,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload json.RawMessage   `json:"payload"`
}

// Publisher is the minimal PUBLISH surface the adapter needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Adapter struct {
	Publisher  Publisher
	Channel    string                // when set, every event goes to this channel instead of its topic
	Propagator cbus.HeaderPropagator // optional
}

var _ cbus.EventPublisher = (*Adapter)(nil)

func New(p Publisher) *Adapter { return &Adapter{Publisher: p} }

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(p Publisher, hp cbus.HeaderPropagator) *Adapter {
	return &Adapter{Publisher: p, Propagator: hp}
}

func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil {
		return fmt.Errorf("redis publish: %w", berr.ErrPublishFailed)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	env := Envelope{
		Type:    typeName(e),
		Topic:   topicForEvent(e, opts),
		Key:     opts.Key,
		Headers: make(map[string]string, len(opts.Headers)),
		Payload: payload,
	}
	for k, v := range opts.Headers {
		env.Headers[k] = v
	}

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, env.Headers)
	}

	env.ID = env.Headers[cbus.HeaderMessageID]
	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	delete(env.Headers, cbus.HeaderMessageID)

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	channel := env.Topic
	if a.Channel != "" {
		channel = a.Channel
	}

	if err := a.Publisher.Publish(ctx, channel, body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("redis publish to %q: %w", channel, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	return name
}

func topicForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

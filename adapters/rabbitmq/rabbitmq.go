package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

type Adapter struct {
	Publisher  Publisher
	Exchange   string                // empty means the default exchange
	Propagator cbus.HeaderPropagator // optional, for context propagation into headers
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
		return fmt.Errorf("rabbitmq publish: %w", berr.ErrPublishFailed)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	// copy headers to avoid mutating caller-provided map
	hdrs := publishHeaders(e, opts)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	msg := PubMsg{
		Exchange:   a.Exchange,
		RoutingKey: routingForEvent(e, opts),
		Body:       body,
		Headers:    hdrs,
	}
	if err := a.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish: %w", errors.Join(berr.ErrPublishFailed, err))
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

func routingForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

func publishHeaders(e cbus.IntegrationEvent, o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+3)
	for k, v := range o.Headers {
		h[k] = v
	}

	if o.Key != "" {
		h["key"] = o.Key
	}

	if _, ok := h[cbus.HeaderMessageID]; !ok {
		h[cbus.HeaderMessageID] = uuid.NewString()
	}

	h[cbus.HeaderEventType] = typeName(e)

	return h
}

func amqpTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}

	h := amqp.Table{}
	for k, v := range headers {
		h[k] = v
	}

	return h
}

type amqpChannelPublisher struct{ ch *amqp.Channel }

func (p amqpChannelPublisher) Publish(ctx context.Context, m PubMsg) error {
	return p.ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			Headers:     amqpTable(m.Headers),
			MessageId:   m.Headers[cbus.HeaderMessageID],
			Type:        m.Headers[cbus.HeaderEventType],
			Body:        m.Body,
			ContentType: "application/json",
		},
	)
}

// NewWithAMQPChannel wraps an existing channel; events go to the default exchange.
func NewWithAMQPChannel(ch *amqp.Channel) *Adapter {
	return &Adapter{Publisher: amqpChannelPublisher{ch: ch}}
}

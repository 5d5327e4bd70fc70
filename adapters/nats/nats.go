package nats

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

// Client is a minimal NATS-like publisher interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Adapter implements cbus.EventPublisher using an injected NATS-like Client.
type Adapter struct {
	Client     Client
	Propagator cbus.HeaderPropagator // optional, for context propagation into headers
}

// Ensure Adapter implements the relay contract.
var _ cbus.EventPublisher = (*Adapter)(nil)

// New creates a new NATS adapter instance with the provided client.
func New(c Client) *Adapter { return &Adapter{Client: c} }

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(c Client, hp cbus.HeaderPropagator) *Adapter {
	return &Adapter{Client: c, Propagator: hp}
}

func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil {
		return fmt.Errorf("nats publish: %w", berr.ErrPublishFailed)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("nats publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := publishHeaders(e, opts)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, headers)
	}

	if err := a.Client.Publish(subjectForEvent(e, opts), body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish: %w", errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

// helpers

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" { // unnamed (e.g., map/struct literal)
		name = t.String()
	}

	return name
}

func subjectForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
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

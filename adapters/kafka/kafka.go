package kafka

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

// Writer is a minimal Kafka-like writer interface.
// Users can adapt segmentio/kafka-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Adapter implements cbus.EventPublisher using an injected Writer.
type Adapter struct {
	Writer     Writer
	Propagator cbus.HeaderPropagator // optional
}

var _ cbus.EventPublisher = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer.
func New(w Writer) *Adapter { return &Adapter{Writer: w} }

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(w Writer, hp cbus.HeaderPropagator) *Adapter {
	return &Adapter{Writer: w, Propagator: hp}
}

// PublishIntegration writes the event as a JSON record. PublishOptions.Key becomes the
// record key, so events of one aggregate stay on one partition.
func (a *Adapter) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrPublishFailed)
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	topic := topicForEvent(e, opts)

	var key []byte
	if opts.Key != "" {
		key = []byte(opts.Key)
	}

	headers := publishHeaders(e, opts)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, headers)
	}

	if err = a.Writer.Write(ctx, topic, key, val, headers); err != nil {
		return wrapProduceErr(topic, err)
	}

	return nil
}

func wrapProduceErr(topic string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("kafka publish to %q: %w", topic, errors.Join(berr.ErrPublishFailed, err))
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

func publishHeaders(e cbus.IntegrationEvent, o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+2)
	for k, v := range o.Headers {
		h[k] = v
	}

	if _, ok := h[cbus.HeaderMessageID]; !ok {
		h[cbus.HeaderMessageID] = uuid.NewString()
	}

	h[cbus.HeaderEventType] = typeName(e)

	return h
}

package rabbitmq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/next-trace/scg-message-bus/adapters/rabbitmq"
	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

type fakePublisher struct {
	calls []rabbitmq.PubMsg
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, m rabbitmq.PubMsg) error {
	f.calls = append(f.calls, m)

	return f.err
}

type integ struct {
	cbus.BaseEvent
	Account string `json:"account"`
}

func (integ) Topic() string { return "evt.accounts" }

type unencodable struct {
	cbus.BaseEvent
	F func()
}

func (unencodable) Topic() string { return "bad" }

type traceProp struct{}

func (traceProp) Inject(_ context.Context, h map[string]string) { h["traceparent"] = "00-abc" }

func TestRabbitMQ_PublishIntegration(t *testing.T) {
	fp := &fakePublisher{}
	ad := rabbitmq.NewWithPropagator(fp, traceProp{})
	ad.Exchange = "integration"

	po := cbus.PublishOptions{Key: "rk", Headers: map[string]string{"ph": "pv"}}
	if err := ad.PublishIntegration(t.Context(), integ{Account: "a1"}, po); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fp.calls) != 1 {
		t.Fatalf("want 1, got %d", len(fp.calls))
	}

	p := fp.calls[0]
	if p.Exchange != "integration" || p.RoutingKey != "evt.accounts" {
		t.Fatalf("routing: %q %q", p.Exchange, p.RoutingKey)
	}

	if p.Headers["ph"] != "pv" || p.Headers["key"] != "rk" || p.Headers["traceparent"] != "00-abc" {
		t.Fatalf("pub headers: %+v", p.Headers)
	}

	if p.Headers[cbus.HeaderMessageID] == "" || p.Headers[cbus.HeaderEventType] != "integ" {
		t.Fatalf("bus headers missing: %+v", p.Headers)
	}

	var body map[string]any
	if err := json.Unmarshal(p.Body, &body); err != nil || body["account"] != "a1" {
		t.Fatalf("body: %s (%v)", p.Body, err)
	}

	if _, ok := po.Headers["key"]; ok {
		t.Fatalf("caller headers mutated: %+v", po.Headers)
	}
}

func TestRabbitMQ_TopicOverride(t *testing.T) {
	fp := &fakePublisher{}
	ad := rabbitmq.New(fp)

	if err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{TopicOverride: "evt.other"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if fp.calls[0].RoutingKey != "evt.other" || fp.calls[0].Exchange != "" {
		t.Fatalf("routing=%+v", fp.calls[0])
	}
}

func TestRabbitMQ_NilPublisherError(t *testing.T) {
	ad := rabbitmq.New(nil)

	err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{})
	if !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want ErrPublishFailed, got %v", err)
	}
}

func TestRabbitMQ_SerializationError(t *testing.T) {
	fp := &fakePublisher{}
	ad := rabbitmq.New(fp)

	err := ad.PublishIntegration(t.Context(), unencodable{F: func() {}}, cbus.PublishOptions{})
	if !errors.Is(err, berr.ErrSerializationFailed) {
		t.Fatalf("want ErrSerializationFailed, got %v", err)
	}

	if len(fp.calls) != 0 {
		t.Fatalf("unexpected publish")
	}
}

func TestRabbitMQ_Publish_ErrorWrapping_And_ContextCancel(t *testing.T) {
	fp := &fakePublisher{err: errors.New("boom")}
	ad := rabbitmq.New(fp)

	err := ad.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{})
	if !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	fp2 := &fakePublisher{err: context.Canceled}
	ad2 := rabbitmq.New(fp2)

	err = ad2.PublishIntegration(t.Context(), integ{}, cbus.PublishOptions{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want bare context.Canceled, got %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := ad.PublishIntegration(ctx, integ{}, cbus.PublishOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled before publish, got %v", err)
	}
}

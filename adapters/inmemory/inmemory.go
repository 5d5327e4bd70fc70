package inmemory

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// Published is one recorded PublishIntegration call.
type Published struct {
	Event   cbus.IntegrationEvent
	Options cbus.PublishOptions
}

// Publisher is a thread-safe in-memory implementation of cbus.EventPublisher.
// It records published integration events for testing and examples.
// Use with servicebus.WithRelay(inmemory.New()).
type Publisher struct {
	mu        sync.Mutex
	published []Published
	failures  []error
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates a new in-memory publisher instance.
func New() *Publisher { return &Publisher{} }

// FailNext makes the next len(errs) publishes return errs in order, without recording them.
func (p *Publisher) FailNext(errs ...error) {
	p.mu.Lock()
	p.failures = append(p.failures, errs...)
	p.mu.Unlock()
}

func (p *Publisher) PublishIntegration(
	ctx context.Context,
	e cbus.IntegrationEvent,
	opts cbus.PublishOptions,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]

		return err
	}

	p.published = append(p.published, Published{Event: e, Options: opts})

	return nil
}

// Published returns a copy of the recorded calls in publish order.
func (p *Publisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Published(nil), p.published...)
}

// Events returns the recorded events in publish order.
func (p *Publisher) Events() []cbus.IntegrationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]cbus.IntegrationEvent, len(p.published))
	for i, rec := range p.published {
		out[i] = rec.Event
	}

	return out
}

// Reset clears recordings and pending failures.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.published = nil
	p.failures = nil
	p.mu.Unlock()
}

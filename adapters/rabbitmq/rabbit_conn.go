package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// Concrete AMQP connection-backed constructor and publisher wrapper with auto-reconnect.

const (
	integrationExchange   = "integration"
	integrationExchangeTy = "topic"
)

type Config struct {
	URL         string
	ConnTimeout time.Duration
}

type reconnectingPublisher struct {
	cfg    Config
	mu     sync.RWMutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed chan struct{}
	ready  chan struct{} // closed when a channel is ready
}

func newReconnectingPublisher(cfg Config) (*reconnectingPublisher, func()) {
	rp := &reconnectingPublisher{
		cfg:    cfg,
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go rp.run()
	cleanup := func() { rp.close() }
	return rp, cleanup
}

func (rp *reconnectingPublisher) channel() (*amqp.Channel, chan struct{}) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.ch, rp.ready
}

func (rp *reconnectingPublisher) Publish(ctx context.Context, m PubMsg) error {
	ch, ready := rp.channel()
	if ch == nil {
		// wait for readiness or context cancellation
		select {
		case <-ready:
		case <-rp.closed:
			return fmt.Errorf("%w: rabbitmq publisher closed", berr.ErrPublishFailed)
		case <-ctx.Done():
			return ctx.Err()
		}
		ch, _ = rp.channel()
		if ch == nil {
			return fmt.Errorf("%w: rabbitmq not connected", berr.ErrPublishFailed)
		}
	}

	return ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Headers:      amqpTable(m.Headers),
			MessageId:    m.Headers[cbus.HeaderMessageID],
			Type:         m.Headers[cbus.HeaderEventType],
			ContentType:  "application/json",
			Body:         m.Body,
		},
	)
}

func (rp *reconnectingPublisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(rp.cfg.URL, amqp.Config{
		Locale:     "en_US",
		Properties: amqp.Table{"product": "scg-message-bus"},
		Dial:       amqp.DefaultDial(rp.cfg.ConnTimeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(
		integrationExchange,
		integrationExchangeTy,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// reconnectBackOff is exponential with jitter, between one and thirty seconds.
func reconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0.25
	b.Reset()
	return b
}

func (rp *reconnectingPublisher) run() {
	bo := reconnectBackOff()

	for {
		select {
		case <-rp.closed:
			return
		default:
		}

		conn, ch, err := rp.dial()
		if err != nil {
			t := time.NewTimer(bo.NextBackOff())
			select {
			case <-rp.closed:
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}

		bo.Reset()

		rp.mu.Lock()
		rp.conn = conn
		rp.ch = ch
		close(rp.ready)
		rp.mu.Unlock()

		// block on connection close notifications to trigger reconnect
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-rp.closed:
			_ = ch.Close()
			_ = conn.Close()
			return
		case <-notify:
		}

		rp.mu.Lock()
		rp.conn, rp.ch = nil, nil
		rp.ready = make(chan struct{})
		rp.mu.Unlock()
		_ = ch.Close()
		_ = conn.Close()
	}
}

func (rp *reconnectingPublisher) close() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	select {
	case <-rp.closed:
		// already closed
		return
	default:
		close(rp.closed)
	}
	if rp.ch != nil {
		_ = rp.ch.Close()
		rp.ch = nil
	}
	if rp.conn != nil {
		_ = rp.conn.Close()
		rp.conn = nil
	}
}

// NewWithAMQPConn dials RabbitMQ with auto-reconnect, ensures the integration exchange, and
// returns an Adapter publishing to it along with a cleanup.
func NewWithAMQPConn(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrPublishFailed)
	}
	pub, cleanup := newReconnectingPublisher(cfg)
	ad := New(pub)
	ad.Exchange = integrationExchange
	return ad, cleanup, nil
}

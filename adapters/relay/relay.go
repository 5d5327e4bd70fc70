// Package relay builds the outbound EventPublisher named by a config.Relay.
package relay

import (
	"context"
	"fmt"

	"github.com/next-trace/scg-message-bus/adapters/inmemory"
	"github.com/next-trace/scg-message-bus/adapters/kafka"
	"github.com/next-trace/scg-message-bus/adapters/nats"
	"github.com/next-trace/scg-message-bus/adapters/rabbitmq"
	"github.com/next-trace/scg-message-bus/adapters/redis"
	"github.com/next-trace/scg-message-bus/config"
	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

func nop() {}

// FromConfig connects the relay selected by cfg.Kind. It returns a nil publisher and a no-op
// cleanup for config.RelayNone. hp may be nil.
func FromConfig(ctx context.Context, cfg config.Relay, hp cbus.HeaderPropagator) (cbus.EventPublisher, func(), error) {
	switch cfg.Kind {
	case config.RelayNone:
		return nil, nop, nil
	case config.RelayMemory:
		return inmemory.New(), nop, nil
	case config.RelayNATS:
		ad, cleanup, err := nats.NewWithNATS(nats.Config{URL: cfg.URL, Name: cfg.Name, ConnTimeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}

		ad.Propagator = hp

		return ad, cleanup, nil
	case config.RelayRabbitMQ:
		ad, cleanup, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{URL: cfg.URL, ConnTimeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}

		ad.Propagator = hp

		return ad, cleanup, nil
	case config.RelayKafka:
		ad, cleanup, err := kafka.NewWithKgo(kafka.Config{Brokers: cfg.Brokers, ClientID: cfg.Name})
		if err != nil {
			return nil, nil, err
		}

		ad.Propagator = hp

		return ad, cleanup, nil
	case config.RelayRedis:
		ad, cleanup, err := redis.NewWithRedis(ctx, redis.Config{URL: cfg.URL, Channel: cfg.Channel, DialTimeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}

		ad.Propagator = hp

		return ad, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("%w: relay kind %q", config.ErrInvalid, cfg.Kind)
	}
}

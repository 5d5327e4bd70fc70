package relay_test

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/next-trace/scg-message-bus/adapters/inmemory"
	"github.com/next-trace/scg-message-bus/adapters/kafka"
	"github.com/next-trace/scg-message-bus/adapters/redis"
	"github.com/next-trace/scg-message-bus/adapters/relay"
	"github.com/next-trace/scg-message-bus/config"
	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

func TestFromConfig_None(t *testing.T) {
	pub, cleanup, err := relay.FromConfig(t.Context(), config.Relay{}, nil)
	if err != nil || pub != nil || cleanup == nil {
		t.Fatalf("none: pub=%v err=%v", pub, err)
	}

	cleanup()
}

func TestFromConfig_Memory(t *testing.T) {
	pub, cleanup, err := relay.FromConfig(t.Context(), config.Relay{Kind: config.RelayMemory}, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	defer cleanup()

	if _, ok := pub.(*inmemory.Publisher); !ok {
		t.Fatalf("want *inmemory.Publisher, got %T", pub)
	}
}

func TestFromConfig_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	pub, cleanup, err := relay.FromConfig(t.Context(), config.Relay{Kind: config.RelayRedis, URL: "redis://" + mr.Addr(), Channel: "events"}, cbus.NopHeaderPropagator{})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer cleanup()

	ad, ok := pub.(*redis.Adapter)
	if !ok || ad.Channel != "events" || ad.Propagator == nil {
		t.Fatalf("redis adapter: %#v", pub)
	}
}

func TestFromConfig_Kafka(t *testing.T) {
	pub, cleanup, err := relay.FromConfig(t.Context(), config.Relay{Kind: config.RelayKafka, Brokers: []string{"127.0.0.1:1"}}, nil)
	if err != nil {
		t.Fatalf("kafka: %v", err)
	}
	defer cleanup()

	if _, ok := pub.(*kafka.Adapter); !ok {
		t.Fatalf("want *kafka.Adapter, got %T", pub)
	}
}

func TestFromConfig_Errors(t *testing.T) {
	if _, _, err := relay.FromConfig(t.Context(), config.Relay{Kind: config.RelayNATS}, nil); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("nats without url: %v", err)
	}

	if _, _, err := relay.FromConfig(t.Context(), config.Relay{Kind: config.RelayRabbitMQ}, nil); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("rabbitmq without url: %v", err)
	}

	if _, _, err := relay.FromConfig(t.Context(), config.Relay{Kind: "sqs"}, nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("unknown kind: %v", err)
	}
}

package kafka

import (
	"errors"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"

	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

func TestNewWithKgo_RequiresBrokers(t *testing.T) {
	_, _, err := NewWithKgo(Config{})
	if !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("want ErrPublishFailed, got %v", err)
	}
}

func TestClientOpts_SASL(t *testing.T) {
	if _, err := clientOpts(Config{Brokers: []string{"b:9092"}, SASL: &SASLConfig{Mechanism: "SCRAM-SHA-512"}}); !errors.Is(err, berr.ErrPublishFailed) {
		t.Fatalf("unsupported mechanism: %v", err)
	}

	opts, err := clientOpts(Config{
		Brokers:     []string{"b:9092"},
		ClientID:    "svc",
		SASL:        &SASLConfig{Mechanism: "plain", Username: "u", Password: "p"},
		Compression: kgo.SnappyCompression(),
	})
	if err != nil {
		t.Fatalf("plain: %v", err)
	}

	if len(opts) < 4 {
		t.Fatalf("expected options for brokers, client id, compression and sasl, got %d", len(opts))
	}
}

func TestNewRecord_Headers(t *testing.T) {
	rec := newRecord("t", []byte("k"), []byte("v"), map[string]string{"a": "1"})
	if rec.Topic != "t" || string(rec.Key) != "k" || len(rec.Headers) != 1 || rec.Headers[0].Key != "a" {
		t.Fatalf("record: %+v", rec)
	}

	if rec := newRecord("t", nil, nil, nil); rec.Headers != nil {
		t.Fatalf("headers should be nil")
	}
}

func TestNewWithKgo_BuildsClientLazily(t *testing.T) {
	ad, cleanup, err := NewWithKgo(Config{Brokers: []string{"127.0.0.1:1"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	if _, ok := ad.Writer.(kgoWriter); !ok {
		t.Fatalf("writer: %T", ad.Writer)
	}
}

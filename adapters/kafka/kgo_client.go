package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// Concrete franz-go based constructor and writer wrapper.

// SASLConfig selects broker authentication. Only PLAIN is supported.
type SASLConfig struct {
	Mechanism string
	Username  string
	Password  string
}

type Config struct {
	Brokers     []string
	TLS         *tls.Config
	SASL        *SASLConfig
	Acks        kgo.Acks
	Idempotent  bool
	ClientID    string
	Compression kgo.CompressionCodec
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	return w.cl.ProduceSync(ctx, newRecord(topic, key, value, headers)).FirstErr()
}

func newRecord(topic string, key, value []byte, headers map[string]string) *kgo.Record {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}
	return rec
}

func clientOpts(cfg Config) ([]kgo.Opt, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers required", berr.ErrPublishFailed)
	}
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}
	if cfg.Idempotent {
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	} else {
		opts = append(opts, kgo.DisableIdempotentWrite())
		if cfg.Acks != (kgo.Acks{}) {
			opts = append(opts, kgo.RequiredAcks(cfg.Acks))
		}
	}
	if cfg.Compression != (kgo.CompressionCodec{}) {
		opts = append(opts, kgo.ProducerBatchCompression(cfg.Compression))
	}
	if cfg.SASL != nil && cfg.SASL.Mechanism != "" {
		if !strings.EqualFold(cfg.SASL.Mechanism, "PLAIN") {
			return nil, fmt.Errorf("%w: unsupported SASL mechanism %q", berr.ErrPublishFailed, cfg.SASL.Mechanism)
		}
		opts = append(opts, kgo.SASL(plain.Auth{User: cfg.SASL.Username, Pass: cfg.SASL.Password}.AsMechanism()))
	}
	return opts, nil
}

// NewWithKgo builds a franz-go client based Adapter. The returned cleanup should be called to close the client.
func NewWithKgo(cfg Config) (*Adapter, func(), error) {
	opts, err := clientOpts(cfg)
	if err != nil {
		return nil, nil, err
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", berr.ErrPublishFailed, err)
	}
	ad := New(kgoWriter{cl: cl})
	cleanup := func() { cl.Close() }
	return ad, cleanup, nil
}

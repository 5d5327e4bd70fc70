package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// Concrete go-redis based constructor and publisher wrapper.

type Config struct {
	URL         string // redis://[:password@]host:port/db
	Channel     string
	DialTimeout time.Duration
}

type clientPublisher struct{ cl goredis.UniversalClient }

func (p clientPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.cl.Publish(ctx, channel, payload).Err()
}

// NewWithClient wraps an existing go-redis client. The caller keeps ownership of it.
func NewWithClient(cl goredis.UniversalClient) *Adapter {
	return New(clientPublisher{cl: cl})
}

// NewWithRedis connects to cfg.URL, checks the connection with PING and returns an Adapter and
// a cleanup that closes the client.
func NewWithRedis(ctx context.Context, cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: redis url required", berr.ErrPublishFailed)
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: redis url: %w", berr.ErrPublishFailed, err)
	}

	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	cl := goredis.NewClient(opts)

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	if err := cl.Ping(pingCtx).Err(); err != nil {
		_ = cl.Close()
		return nil, nil, fmt.Errorf("%w: redis connection failed: %w", berr.ErrPublishFailed, err)
	}

	ad := NewWithClient(cl)
	ad.Channel = cfg.Channel
	cleanup := func() { _ = cl.Close() }

	return ad, cleanup, nil
}

package servicebus

import (
	"github.com/next-trace/scg-message-bus/config"
	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// FromConfig maps file/env settings onto bus options. The relay is not part of the mapping;
// build it with adapters/relay and pass WithRelay.
func FromConfig(cfg config.Bus) []Option {
	opts := []Option{
		WithName(cfg.Name),
		WithEventRetrying(cfg.EventRetrying),
		WithBackoff(cfg.Backoff.Base, cfg.Backoff.Cap),
	}

	if cfg.PollInterval > 0 {
		opts = append(opts, WithPollInterval(cfg.PollInterval))
	}

	if cfg.MaxInFlight > 0 {
		opts = append(opts, WithMaxInFlight(cfg.MaxInFlight))
	}

	return opts
}

// New builds the variant named by cfg.
func New(cfg config.Bus, opts ...Option) cbus.Bus { //nolint:ireturn
	all := append(FromConfig(cfg), opts...)

	if cfg.Variant == config.VariantAsync {
		return NewAsync(all...)
	}

	return NewSync(all...)
}

package servicebus

import (
	"context"
	"io"
	"log/slog"
	"time"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	"github.com/next-trace/scg-message-bus/unitofwork"
)

const (
	// DefaultEventRetrying is the default attempt budget for event handlers.
	DefaultEventRetrying = 5
	// DefaultPollInterval bounds how long the SyncBus loop blocks on an empty queue.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultBackoffBase is the first wait between event handler attempts.
	DefaultBackoffBase = 100 * time.Millisecond
	// DefaultBackoffCap caps the wait between event handler attempts.
	DefaultBackoffCap = 10 * time.Second
)

// DeadLetter describes an event/handler pair dropped after its attempt budget ran out.
type DeadLetter struct {
	Event    cbus.Event
	Handler  string
	Attempts int
	Err      error
}

// Option configures a SyncBus or AsyncBus.
type Option func(*settings)

type observerBinding struct {
	sigs     []cbus.Signal
	observer cbus.Observer
}

type settings struct {
	name         string
	logger       *slog.Logger
	defaults     cbus.HandlerSettings
	retry        RetryPolicy
	pollInterval time.Duration
	maxInFlight  int64
	middleware   []cbus.Middleware
	relay        cbus.EventPublisher
	deadLetter   func(ctx context.Context, dl DeadLetter)
	observers    []observerBinding
}

func newSettings(opts []Option) settings {
	s := settings{
		name:         "servicebus",
		defaults:     cbus.HandlerSettings{UnitOfWork: unitofwork.Factory},
		retry:        DefaultRetryPolicy(),
		pollInterval: DefaultPollInterval,
	}

	for _, o := range opts {
		o(&s)
	}

	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if s.defaults.UnitOfWork == nil {
		s.defaults.UnitOfWork = unitofwork.Factory
	}

	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}

	return s
}

// WithName sets the logger identifier of the bus.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger injects the structured logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

// WithDefaultUnitOfWork sets the factory used by registrations that do not override it.
func WithDefaultUnitOfWork(f cbus.UnitOfWorkFactory) Option {
	return func(s *settings) { s.defaults.UnitOfWork = f }
}

// WithDefaultRepository sets the repository handle passed to unit-of-work factories.
func WithDefaultRepository(r cbus.Repository) Option {
	return func(s *settings) { s.defaults.Repository = r }
}

// WithDefaultEngine sets the engine handle passed to unit-of-work factories.
func WithDefaultEngine(e cbus.Engine) Option {
	return func(s *settings) { s.defaults.Engine = e }
}

// WithEventRetrying sets the attempt budget of event handlers (default 5).
func WithEventRetrying(n int) Option { return func(s *settings) { s.retry.MaxAttempts = n } }

// WithBackoff sets the exponential wait between event handler attempts: min(base*2^n, limit).
func WithBackoff(base, limit time.Duration) Option {
	return func(s *settings) {
		s.retry.Base = base
		s.retry.Cap = limit
	}
}

// WithRetryPolicy replaces the whole event retry policy.
func WithRetryPolicy(p RetryPolicy) Option { return func(s *settings) { s.retry = p } }

// WithPollInterval sets the SyncBus queue poll timeout. AsyncBus ignores it.
func WithPollInterval(d time.Duration) Option { return func(s *settings) { s.pollInterval = d } }

// WithMaxInFlight caps concurrently running AsyncBus tasks. Zero means unbounded. SyncBus ignores it.
func WithMaxInFlight(n int64) Option { return func(s *settings) { s.maxInFlight = n } }

// WithMiddleware appends handler middleware. The first registered middleware runs first.
func WithMiddleware(mw ...cbus.Middleware) Option {
	return func(s *settings) { s.middleware = append(s.middleware, mw...) }
}

// WithRelay mirrors every cbus.IntegrationEvent to pub through an extra handler named "relay".
func WithRelay(pub cbus.EventPublisher) Option { return func(s *settings) { s.relay = pub } }

// WithDeadLetter is called for every event/handler pair dropped after exhausting its attempts.
func WithDeadLetter(fn func(ctx context.Context, dl DeadLetter)) Option {
	return func(s *settings) { s.deadLetter = fn }
}

// WithObserver subscribes observer to sigs, or to every signal when sigs is empty.
func WithObserver(observer cbus.Observer, sigs ...cbus.Signal) Option {
	return func(s *settings) {
		if len(sigs) == 0 {
			sigs = cbus.Signals()
		}

		s.observers = append(s.observers, observerBinding{sigs: sigs, observer: observer})
	}
}

// Handler options.

// WithHandlerName names the handler in logs, metrics and dead letters.
func WithHandlerName(name string) cbus.HandlerOption {
	return func(h *cbus.HandlerSettings) { h.Name = name }
}

// WithUnitOfWork overrides the unit-of-work factory for one registration.
func WithUnitOfWork(f cbus.UnitOfWorkFactory) cbus.HandlerOption {
	return func(h *cbus.HandlerSettings) { h.UnitOfWork = f }
}

// WithRepository overrides the repository handle for one registration.
func WithRepository(r cbus.Repository) cbus.HandlerOption {
	return func(h *cbus.HandlerSettings) { h.Repository = r }
}

// WithEngine overrides the engine handle for one registration.
func WithEngine(e cbus.Engine) cbus.HandlerOption {
	return func(h *cbus.HandlerSettings) { h.Engine = e }
}

// WithMaxAttempts overrides the attempt budget for one event registration.
func WithMaxAttempts(n int) cbus.HandlerOption {
	return func(h *cbus.HandlerSettings) { h.MaxAttempts = n }
}

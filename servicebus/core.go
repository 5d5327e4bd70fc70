package servicebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// relayHandlerName identifies the outbound relay in logs, metrics and dead letters.
const relayHandlerName = "relay"

// core holds what SyncBus and AsyncBus share: registry, signals, retry policy and the
// command/event invocation contract. The variants only differ in how event work is scheduled.
type core struct {
	self     cbus.Bus
	logger   *slog.Logger
	registry *Registry
	signals  *SignalBus
	retry    RetryPolicy
	relay    *HandlerConfig

	deadLetter func(ctx context.Context, dl DeadLetter)

	// lifecycle serialises Start and Stop.
	lifecycle sync.Mutex
	// gate guards state; external admissions hold it shared while joining inflight.
	gate     sync.RWMutex
	state    state
	inflight sync.WaitGroup
}

func newCore(s settings, variant string) *core {
	logger := s.logger.With("bus", s.name, "variant", variant)
	c := &core{
		logger:     logger,
		registry:   NewRegistry(s.defaults, s.middleware...),
		signals:    NewSignalBus(logger),
		retry:      s.retry,
		deadLetter: s.deadLetter,
	}

	for _, ob := range s.observers {
		for _, sig := range ob.sigs {
			c.signals.Subscribe(sig, ob.observer)
		}
	}

	if s.relay != nil {
		t := reflect.TypeOf((*cbus.IntegrationEvent)(nil)).Elem()
		cfg := c.registry.newConfig(t, cbus.KindEvent, relayHandler(s.relay), []cbus.HandlerOption{WithHandlerName(relayHandlerName)})
		c.relay = &cfg
	}

	return c
}

// Register binds a handler to the concrete type of sample. See Registry.Register.
func (c *core) Register(sample cbus.Message, handler cbus.Handler, opts ...cbus.HandlerOption) error {
	return c.registry.Register(sample, handler, opts...)
}

// Subscribe attaches an observer to a lifecycle signal.
func (c *core) Subscribe(sig cbus.Signal, observer cbus.Observer) {
	c.signals.Subscribe(sig, observer)
}

// Running reports whether the bus accepts messages.
func (c *core) Running() bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.state == stateRunning
}

func (c *core) setState(s state) {
	c.gate.Lock()
	c.state = s
	c.gate.Unlock()
}

// admit registers an external Handle call. It fails unless the bus is running, so Stop
// can wait for every admitted call before draining.
func (c *core) admit(msg cbus.Message) (func(), error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	if c.state != stateRunning {
		return nil, fmt.Errorf("handle %s: %w", typeName(msg), berr.ErrBusNotRunning)
	}

	c.inflight.Add(1)

	return c.inflight.Done, nil
}

// beginStop moves the bus to stopping and waits for admitted Handle calls to return.
func (c *core) beginStop() {
	c.setState(stateStopping)
	c.inflight.Wait()
}

// handle validates msg and routes it: commands run inline, events go to dispatch.
func (c *core) handle(ctx context.Context, msg cbus.Message, dispatch func(context.Context, cbus.Event)) (any, error) {
	kind := cbus.KindOf(msg)
	if kind == 0 {
		return nil, fmt.Errorf("handle %T: %w", msg, berr.ErrUnknownMessage)
	}

	release, err := c.admit(msg)
	if err != nil {
		return nil, err
	}
	defer release()

	if kind == cbus.KindCommand {
		return c.handleCommand(ctx, msg.(cbus.Command), dispatch)
	}

	dispatch(detach(ctx), msg.(cbus.Event))

	return nil, nil
}

// handleCommand runs the single command handler once. Events collected by the Unit of Work
// are dispatched whether or not the handler failed, before the result reaches the caller.
func (c *core) handleCommand(ctx context.Context, cmd cbus.Command, dispatch func(context.Context, cbus.Event)) (res any, err error) {
	cfgs, err := c.registry.Handlers(cmd)
	if err != nil {
		return nil, err
	}

	cfg := cfgs[0]

	uow, err := cfg.newUnitOfWork(ctx)
	if err != nil {
		return nil, fmt.Errorf("handle %s: %w", typeName(cmd), err)
	}

	defer func() {
		c.forward(detach(ctx), uow.CollectEvents(), dispatch)
	}()

	res, err = c.invoke(ctx, cfg, cmd, uow, 1)
	if err != nil {
		c.logger.ErrorContext(ctx, "command handler failed",
			"command", fmt.Sprintf("%+v", cmd), "handler", cfg.Name(), "err", err)

		return res, err
	}

	return res, nil
}

// eventTargets lists the handler configurations an event fans out to, relay last.
func (c *core) eventTargets(ev cbus.Event) []HandlerConfig {
	cfgs, err := c.registry.Handlers(ev)
	if err != nil {
		c.logger.Error("event routing failed", "event", typeName(ev), "err", err)
		return nil
	}

	if c.relay != nil {
		if _, ok := ev.(cbus.IntegrationEvent); ok {
			cfgs = append(cfgs, *c.relay)
		}
	}

	if len(cfgs) == 0 {
		c.logger.Debug("event has no handlers", "event", typeName(ev))
	}

	return cfgs
}

// processEvent runs one event/handler pair under the retry policy. Each attempt gets a fresh
// Unit of Work whose events are dispatched before the retry decision. Exhaustion is logged
// and reported as a dead letter; it never propagates.
func (c *core) processEvent(ctx context.Context, ev cbus.Event, cfg HandlerConfig, dispatch func(context.Context, cbus.Event)) {
	policy := c.retry
	if r, ok := ev.(cbus.Retryable); ok {
		policy = policy.WithAttempts(r.Tries())
	}

	policy = policy.WithAttempts(cfg.MaxAttempts())

	attempts, err := policy.Run(ctx, func(ctx context.Context, attempt int) error {
		uow, err := cfg.newUnitOfWork(ctx)
		if err != nil {
			return err
		}

		_, herr := c.invoke(ctx, cfg, ev, uow, attempt)
		c.forward(ctx, uow.CollectEvents(), dispatch)

		if herr != nil {
			c.logger.DebugContext(ctx, "event handler attempt failed",
				"event", typeName(ev), "handler", cfg.Name(), "attempt", attempt, "err", herr)
		}

		return herr
	})
	if err == nil {
		return
	}

	c.logger.ErrorContext(ctx, "event handler gave up",
		"event", fmt.Sprintf("%+v", ev), "handler", cfg.Name(), "attempts", attempts, "err", err)

	if c.deadLetter != nil {
		c.deadLetter(ctx, DeadLetter{Event: ev, Handler: cfg.Name(), Attempts: attempts, Err: err})
	}
}

// invoke calls the wrapped handler and converts panics into errors.
func (c *core) invoke(ctx context.Context, cfg HandlerConfig, msg cbus.Message, uow cbus.UnitOfWork, attempt int) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panic: %v", cfg.Name(), r)
		}
	}()

	ctx = cbus.WithInvocation(ctx, cbus.Invocation{
		Kind:        cfg.Kind(),
		MessageType: typeName(msg),
		Handler:     cfg.Name(),
		Attempt:     attempt,
	})

	return cfg.call(ctx, msg, uow)
}

func (c *core) forward(ctx context.Context, events []cbus.Event, dispatch func(context.Context, cbus.Event)) {
	for _, ev := range events {
		if ev == nil {
			continue
		}

		dispatch(ctx, ev)
	}
}

func (c *core) notify(ctx context.Context, sig cbus.Signal, args ...any) {
	c.signals.Notify(ctx, c.self, sig, args...)
}

// detach keeps ctx values (trace IDs) but drops cancellation: event work outlives the publisher.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return context.WithoutCancel(ctx)
}

func relayHandler(pub cbus.EventPublisher) cbus.Handler {
	return func(ctx context.Context, msg cbus.Message, _ cbus.UnitOfWork) (any, error) {
		ie, ok := msg.(cbus.IntegrationEvent)
		if !ok {
			return nil, fmt.Errorf("relay %T: %w", msg, berr.ErrHandlerTypeMismatch)
		}

		var opts cbus.PublishOptions
		if k, ok := msg.(cbus.Keyed); ok {
			opts.Key = k.Key()
		}

		if err := pub.PublishIntegration(ctx, ie, opts); err != nil {
			if !errors.Is(err, berr.ErrPublishFailed) {
				err = errors.Join(berr.ErrPublishFailed, err)
			}

			return nil, fmt.Errorf("relay %s: %w", ie.Topic(), err)
		}

		return nil, nil
	}
}

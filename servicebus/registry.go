package servicebus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// HandlerConfig is the immutable registry entry binding a message type to its handler
// and the resources used to build a Unit of Work for each invocation.
type HandlerConfig struct {
	messageType reflect.Type
	kind        cbus.Kind
	name        string
	call        cbus.Handler // handler wrapped in the bus middleware
	unitOfWork  cbus.UnitOfWorkFactory
	repository  cbus.Repository
	engine      cbus.Engine
	maxAttempts int
}

func (h HandlerConfig) MessageType() reflect.Type          { return h.messageType }
func (h HandlerConfig) Kind() cbus.Kind                    { return h.kind }
func (h HandlerConfig) Name() string                       { return h.name }
func (h HandlerConfig) UnitOfWork() cbus.UnitOfWorkFactory { return h.unitOfWork }
func (h HandlerConfig) Repository() cbus.Repository        { return h.repository }
func (h HandlerConfig) Engine() cbus.Engine                { return h.engine }

// MaxAttempts is the per-registration attempt override; zero means the bus policy applies.
func (h HandlerConfig) MaxAttempts() int { return h.maxAttempts }

func (h HandlerConfig) newUnitOfWork(ctx context.Context) (cbus.UnitOfWork, error) {
	uow, err := h.unitOfWork(ctx, h.repository, h.engine)
	if err != nil {
		return nil, fmt.Errorf("unit of work for %s: %w", h.name, errors.Join(berr.ErrUnitOfWorkFailed, err))
	}

	if uow == nil {
		return nil, fmt.Errorf("unit of work for %s: %w: factory returned nil", h.name, berr.ErrUnitOfWorkFailed)
	}

	return uow, nil
}

// Registry maps message types to handler configurations.
//
// Registration is expected to finish before the owning bus starts; once sealed the
// registry rejects new entries with ErrBusRunning.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	commands map[reflect.Type]HandlerConfig
	events   map[reflect.Type][]HandlerConfig
	defaults cbus.HandlerSettings
	chain    []cbus.Middleware
}

// NewRegistry creates a registry applying defaults to registrations that leave them unset.
// Middleware wraps every registered handler, first element outermost.
func NewRegistry(defaults cbus.HandlerSettings, mw ...cbus.Middleware) *Registry {
	return &Registry{
		commands: make(map[reflect.Type]HandlerConfig),
		events:   make(map[reflect.Type][]HandlerConfig),
		defaults: defaults,
		chain:    mw,
	}
}

// Register binds handler to the concrete type of sample. Commands accept a single handler;
// events accumulate handlers in registration order.
func (r *Registry) Register(sample cbus.Message, handler cbus.Handler, opts ...cbus.HandlerOption) error {
	kind := cbus.KindOf(sample)
	if kind == 0 {
		return fmt.Errorf("register %T: %w", sample, berr.ErrUnknownMessage)
	}

	t := reflect.TypeOf(sample)

	if handler == nil {
		return fmt.Errorf("register %s: %w", t.String(), berr.ErrNilHandler)
	}

	cfg := r.newConfig(t, kind, handler, opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", t.String(), berr.ErrBusRunning)
	}

	if kind == cbus.KindCommand {
		if _, exists := r.commands[t]; exists {
			return fmt.Errorf("register command %s: %w", t.String(), berr.ErrHandlerExists)
		}

		r.commands[t] = cfg

		return nil
	}

	r.events[t] = append(r.events[t], cfg)

	return nil
}

func (r *Registry) newConfig(t reflect.Type, kind cbus.Kind, handler cbus.Handler, opts []cbus.HandlerOption) HandlerConfig {
	hs := cbus.HandlerSettings{}
	for _, o := range opts {
		o(&hs)
	}

	if hs.Name == "" {
		hs.Name = funcName(handler)
	}

	if hs.UnitOfWork == nil {
		hs.UnitOfWork = r.defaults.UnitOfWork
	}

	if hs.Repository == nil {
		hs.Repository = r.defaults.Repository
	}

	if hs.Engine == nil {
		hs.Engine = r.defaults.Engine
	}

	call := handler
	for i := len(r.chain) - 1; i >= 0; i-- {
		call = r.chain[i](call)
	}

	return HandlerConfig{
		messageType: t,
		kind:        kind,
		name:        hs.Name,
		call:        call,
		unitOfWork:  hs.UnitOfWork,
		repository:  hs.Repository,
		engine:      hs.Engine,
		maxAttempts: hs.MaxAttempts,
	}
}

// Handlers returns the ordered handler configurations for the concrete type of msg.
// A command without a handler yields ErrHandlerNotFound; an event without handlers
// yields an empty slice.
func (r *Registry) Handlers(msg cbus.Message) ([]HandlerConfig, error) {
	t := reflect.TypeOf(msg)

	switch cbus.KindOf(msg) {
	case cbus.KindCommand:
		r.mu.RLock()
		cfg, ok := r.commands[t]
		r.mu.RUnlock()

		if !ok {
			return nil, fmt.Errorf("handle %s: %w", t.String(), berr.ErrHandlerNotFound)
		}

		return []HandlerConfig{cfg}, nil
	case cbus.KindEvent:
		r.mu.RLock()
		cfgs := append([]HandlerConfig(nil), r.events[t]...)
		r.mu.RUnlock()

		return cfgs, nil
	default:
		return nil, fmt.Errorf("handle %T: %w", msg, berr.ErrUnknownMessage)
	}
}

func (r *Registry) seal(sealed bool) {
	r.mu.Lock()
	r.sealed = sealed
	r.mu.Unlock()
}

// funcName resolves a readable identity for a handler function.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Sprintf("%T", fn)
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return v.Type().String()
	}

	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	return name
}

// MessageName is the unqualified type name the bus uses for msg in logs and metrics.
func MessageName(msg cbus.Message) string { return typeName(msg) }

// typeName returns the short type name of v without pointer stars.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	return name
}

package servicebus

import (
	"context"
	"fmt"
	"reflect"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

// RegisterCommand registers a typed command handler. Duplicate bindings are rejected.
func RegisterCommand[C cbus.Command, R any](
	b cbus.Bus,
	fn func(ctx context.Context, cmd C, uow cbus.UnitOfWork) (R, error),
	opts ...cbus.HandlerOption,
) error {
	var zero C

	h := func(ctx context.Context, msg cbus.Message, uow cbus.UnitOfWork) (any, error) {
		c, ok := msg.(C)
		if !ok {
			return nil, fmt.Errorf("handle %s: %w", reflect.TypeOf(msg).String(), berr.ErrHandlerTypeMismatch)
		}

		return fn(ctx, c, uow)
	}

	return b.Register(zero, h, append([]cbus.HandlerOption{WithHandlerName(funcName(fn))}, opts...)...)
}

// RegisterEvent registers a typed event handler. Multiple handlers are allowed.
func RegisterEvent[E cbus.Event](
	b cbus.Bus,
	fn func(ctx context.Context, evt E, uow cbus.UnitOfWork) error,
	opts ...cbus.HandlerOption,
) error {
	var zero E

	h := func(ctx context.Context, msg cbus.Message, uow cbus.UnitOfWork) (any, error) {
		e, ok := msg.(E)
		if !ok {
			return nil, fmt.Errorf("handle %s: %w", reflect.TypeOf(msg).String(), berr.ErrHandlerTypeMismatch)
		}

		return nil, fn(ctx, e, uow)
	}

	return b.Register(zero, h, append([]cbus.HandlerOption{WithHandlerName(funcName(fn))}, opts...)...)
}

// Handle executes a command and asserts its result type.
func Handle[R any](ctx context.Context, b cbus.Bus, cmd cbus.Command) (R, error) {
	var zero R

	res, err := b.Handle(ctx, cmd)
	if err != nil {
		return zero, err
	}

	if res == nil {
		return zero, nil
	}

	r, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("handle %s: %w", typeName(cmd), berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}

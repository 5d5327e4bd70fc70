package bus

import "context"

// Bus is the contract shared by the thread-style and the cooperative dispatch variants.
//
// Registration must complete before Start. Handle returns the command handler's result
// for commands and (nil, nil) for events, which are processed out of band.
type Bus interface {
	Register(sample Message, handler Handler, opts ...HandlerOption) error

	Start(ctx context.Context) error
	Stop(ctx context.Context, cause error) error

	Handle(ctx context.Context, msg Message) (any, error)

	Subscribe(sig Signal, observer Observer)
}

// HandlerOption customises a single registration. Options are interpreted by the bus
// implementation; see servicebus.WithUnitOfWork and friends.
type HandlerOption func(*HandlerSettings)

// HandlerSettings carries per-registration overrides. Zero values fall back to the bus defaults.
type HandlerSettings struct {
	Name        string
	UnitOfWork  UnitOfWorkFactory
	Repository  Repository
	Engine      Engine
	MaxAttempts int
}

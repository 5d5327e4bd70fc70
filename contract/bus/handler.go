package bus

import "context"

// Repository is an opaque repository handle passed through to a UnitOfWorkFactory.
type Repository any

// Engine is an opaque engine handle (connection pool, client, ...) passed through to a UnitOfWorkFactory.
type Engine any

// UnitOfWork is the scoped transactional context of one handler invocation.
// CollectEvents drains the events produced during the invocation; the bus calls it
// exactly once, after the handler returns.
type UnitOfWork interface {
	CollectEvents() []Event
}

// UnitOfWorkFactory builds a fresh UnitOfWork for every handler invocation and every retry attempt.
type UnitOfWorkFactory func(ctx context.Context, repository Repository, engine Engine) (UnitOfWork, error)

// Handler processes a message inside uow. Command handlers return a result; the result
// of an event handler is discarded.
// Event handlers may run more than once for one event and must be safe to retry.
type Handler func(ctx context.Context, msg Message, uow UnitOfWork) (any, error)

// Middleware wraps handler execution. Middlewares are executed in registration order.
type Middleware func(next Handler) Handler

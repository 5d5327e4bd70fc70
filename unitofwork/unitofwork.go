// Package unitofwork provides an in-memory Unit of Work used as the bus default.
package unitofwork

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// Buffer is a thread-safe in-memory UnitOfWork. Handlers record follow-up events with Add;
// the bus drains them with CollectEvents once the handler returns.
type Buffer struct {
	mu         sync.Mutex
	repository cbus.Repository
	engine     cbus.Engine
	events     []cbus.Event
}

// Ensure Buffer implements the contract.
var _ cbus.UnitOfWork = (*Buffer)(nil)

// New returns an empty Buffer bound to the given handles.
func New(repository cbus.Repository, engine cbus.Engine) *Buffer {
	return &Buffer{repository: repository, engine: engine}
}

// Factory is a cbus.UnitOfWorkFactory that returns a new Buffer per invocation.
func Factory(_ context.Context, repository cbus.Repository, engine cbus.Engine) (cbus.UnitOfWork, error) {
	return New(repository, engine), nil
}

// Add records events produced during the invocation.
func (b *Buffer) Add(events ...cbus.Event) {
	b.mu.Lock()
	b.events = append(b.events, events...)
	b.mu.Unlock()
}

// CollectEvents returns the recorded events and empties the buffer.
func (b *Buffer) CollectEvents() []cbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.events
	b.events = nil

	return out
}

func (b *Buffer) Repository() cbus.Repository { return b.repository }

func (b *Buffer) Engine() cbus.Engine { return b.engine }

// Emit records events on uow when it is a *Buffer and reports whether it did.
// Handlers written against the generic UnitOfWork use it to stay decoupled from Buffer.
func Emit(uow cbus.UnitOfWork, events ...cbus.Event) bool {
	b, ok := uow.(*Buffer)
	if !ok {
		return false
	}

	b.Add(events...)

	return true
}

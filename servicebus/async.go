package servicebus

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// AsyncBus is the cooperative dispatcher: every (event, handler) pair becomes a task in an
// in-flight set supervised by a daemon goroutine that reaps tasks as they finish.
// Commands run inline in the caller's goroutine and are never scheduled as tasks.
type AsyncBus struct {
	*core

	tasks    *taskSet
	finished chan uint64
	sem      *semaphore.Weighted

	quit       chan struct{}
	daemonDone chan struct{}
}

var _ cbus.Bus = (*AsyncBus)(nil)

// NewAsync constructs a stopped AsyncBus.
func NewAsync(opts ...Option) *AsyncBus {
	s := newSettings(opts)
	b := &AsyncBus{
		core:     newCore(s, "async"),
		tasks:    newTaskSet(),
		finished: make(chan uint64),
	}
	b.self = b

	if s.maxInFlight > 0 {
		b.sem = semaphore.NewWeighted(s.maxInFlight)
	}

	return b
}

// Start schedules the daemon and emits PostStart once it signalled readiness.
func (b *AsyncBus) Start(ctx context.Context) error {
	b.lifecycle.Lock()

	if b.Running() {
		b.lifecycle.Unlock()
		return nil
	}

	b.notify(ctx, cbus.PreStart)

	b.registry.seal(true)
	b.quit = make(chan struct{})
	b.daemonDone = make(chan struct{})
	ready := make(chan struct{})

	go b.daemon(ready, b.quit, b.daemonDone)
	<-ready

	b.setState(stateRunning)
	b.logger.InfoContext(ctx, "bus started")
	b.lifecycle.Unlock()

	b.notify(ctx, cbus.PostStart)

	return nil
}

// Stop stops the daemon, then keeps waiting on in-flight tasks until none remain, including
// tasks scheduled by tasks finishing during the drain.
func (b *AsyncBus) Stop(ctx context.Context, cause error) error {
	b.lifecycle.Lock()

	if !b.Running() {
		b.lifecycle.Unlock()
		return nil
	}

	b.notify(ctx, cbus.PreStop, cause)
	b.beginStop()

	close(b.quit)
	<-b.daemonDone

	for b.tasks.len() > 0 {
		b.tasks.remove(<-b.finished)
	}

	b.setState(stateStopped)
	b.registry.seal(false)
	b.logger.InfoContext(ctx, "bus stopped", "cause", cause)
	b.lifecycle.Unlock()

	b.notify(ctx, cbus.PostStop, cause)

	return nil
}

// Handle runs a command inline, or schedules one task per event handler, yields once and
// returns (nil, nil) without waiting for the tasks.
func (b *AsyncBus) Handle(ctx context.Context, msg cbus.Message) (any, error) {
	res, err := b.handle(ctx, msg, b.dispatch)
	if err == nil && cbus.KindOf(msg) == cbus.KindEvent {
		runtime.Gosched()
	}

	return res, err
}

// InFlight reports scheduled tasks that have not been reaped yet.
func (b *AsyncBus) InFlight() int { return b.tasks.len() }

func (b *AsyncBus) dispatch(ctx context.Context, ev cbus.Event) {
	for _, cfg := range b.eventTargets(ev) {
		b.schedule(ctx, ev, cfg)
	}
}

// schedule adds the task to the set before starting it, so a parent task's children are
// always visible before the parent is reaped.
func (b *AsyncBus) schedule(ctx context.Context, ev cbus.Event, cfg HandlerConfig) {
	id := b.tasks.add()

	go func() {
		defer func() { b.finished <- id }()

		if b.sem != nil {
			if err := b.sem.Acquire(ctx, 1); err != nil {
				b.logger.ErrorContext(ctx, "task not started", "event", typeName(ev), "handler", cfg.Name(), "err", err)
				return
			}
			defer b.sem.Release(1)
		}

		b.processEvent(ctx, ev, cfg, b.dispatch)
	}()
}

// daemon reaps finished tasks until quit closes. It blocks while the set is empty.
func (b *AsyncBus) daemon(ready chan<- struct{}, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	close(ready)

	for {
		select {
		case <-quit:
			return
		case id := <-b.finished:
			b.tasks.remove(id)
		}
	}
}

type taskSet struct {
	mu     sync.Mutex
	nextID uint64
	ids    map[uint64]struct{}
}

func newTaskSet() *taskSet { return &taskSet{ids: make(map[uint64]struct{})} }

func (s *taskSet) add() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.ids[s.nextID] = struct{}{}

	return s.nextID
}

func (s *taskSet) remove(id uint64) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *taskSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}

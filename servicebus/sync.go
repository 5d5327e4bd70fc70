package servicebus

import (
	"context"
	"sync"
	"time"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// SyncBus is the thread-style dispatcher: one loop goroutine drains the event queue and
// spawns a short-lived goroutine per (event, handler) pair. Commands run on the caller's goroutine.
type SyncBus struct {
	*core

	queue        *eventQueue
	pollInterval time.Duration

	quit     chan struct{}
	loopDone chan struct{}
}

var _ cbus.Bus = (*SyncBus)(nil)

// NewSync constructs a stopped SyncBus.
func NewSync(opts ...Option) *SyncBus {
	s := newSettings(opts)
	b := &SyncBus{
		core:         newCore(s, "sync"),
		queue:        newEventQueue(),
		pollInterval: s.pollInterval,
	}
	b.self = b

	return b
}

// Start launches the event loop. PostStart is emitted once the loop goroutine exists,
// not once it has processed anything. Starting a running bus is a no-op.
func (b *SyncBus) Start(ctx context.Context) error {
	b.lifecycle.Lock()

	if b.Running() {
		b.lifecycle.Unlock()
		return nil
	}

	b.notify(ctx, cbus.PreStart)

	b.registry.seal(true)
	b.quit = make(chan struct{})
	b.loopDone = make(chan struct{})

	go b.loop(b.quit, b.loopDone)

	b.setState(stateRunning)
	b.logger.InfoContext(ctx, "bus started")
	b.lifecycle.Unlock()

	b.notify(ctx, cbus.PostStart)

	return nil
}

// Stop drains the queue, waits for the loop to exit and emits PostStop with cause.
// In-flight retries run to completion or exhaustion; nothing is abandoned.
func (b *SyncBus) Stop(ctx context.Context, cause error) error {
	b.lifecycle.Lock()

	if !b.Running() {
		b.lifecycle.Unlock()
		return nil
	}

	b.notify(ctx, cbus.PreStop, cause)
	b.beginStop()

	b.queue.join()
	close(b.quit)
	<-b.loopDone

	b.setState(stateStopped)
	b.registry.seal(false)
	b.logger.InfoContext(ctx, "bus stopped", "cause", cause)
	b.lifecycle.Unlock()

	b.notify(ctx, cbus.PostStop, cause)

	return nil
}

// Handle runs a command inline and returns its result, or queues an event for every
// registered handler and returns (nil, nil) immediately.
func (b *SyncBus) Handle(ctx context.Context, msg cbus.Message) (any, error) {
	return b.handle(ctx, msg, b.dispatch)
}

// Pending reports queued or running event/handler pairs.
func (b *SyncBus) Pending() int { return b.queue.unfinishedCount() }

func (b *SyncBus) dispatch(ctx context.Context, ev cbus.Event) {
	for _, cfg := range b.eventTargets(ev) {
		b.queue.put(queueItem{ctx: ctx, event: ev, cfg: cfg})
	}
}

func (b *SyncBus) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-quit:
			return
		default:
		}

		item, ok := b.queue.get(quit, b.pollInterval)
		if !ok {
			continue
		}

		go b.work(item)
	}
}

func (b *SyncBus) work(item queueItem) {
	defer b.queue.taskDone()

	b.processEvent(item.ctx, item.event, item.cfg, b.dispatch)
}

type queueItem struct {
	ctx   context.Context
	event cbus.Event
	cfg   HandlerConfig
}

// eventQueue is an unbounded FIFO with task accounting: put counts a task, taskDone
// finishes one, join blocks until none are unfinished.
type eventQueue struct {
	mu         sync.Mutex
	items      []queueItem
	unfinished int
	allDone    *sync.Cond
	ready      chan struct{}
}

func newEventQueue() *eventQueue {
	q := &eventQueue{ready: make(chan struct{}, 1)}
	q.allDone = sync.NewCond(&q.mu)

	return q
}

func (q *eventQueue) put(item queueItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// get pops the oldest item, waiting at most timeout. It returns false on timeout or quit.
func (q *eventQueue) get(quit <-chan struct{}, timeout time.Duration) (queueItem, bool) {
	if item, ok := q.pop(); ok {
		return item, true
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-q.ready:
		return q.pop()
	case <-quit:
		return queueItem{}, false
	case <-t.C:
		return queueItem{}, false
	}
}

func (q *eventQueue) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return queueItem{}, false
	}

	item := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]

	return item, true
}

func (q *eventQueue) taskDone() {
	q.mu.Lock()
	q.unfinished--

	if q.unfinished <= 0 {
		q.unfinished = 0
		q.allDone.Broadcast()
	}
	q.mu.Unlock()
}

func (q *eventQueue) join() {
	q.mu.Lock()
	for q.unfinished > 0 {
		q.allDone.Wait()
	}
	q.mu.Unlock()
}

func (q *eventQueue) unfinishedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.unfinished
}

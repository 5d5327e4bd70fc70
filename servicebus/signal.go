package servicebus

import (
	"context"
	"log/slog"
	"sync"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// SignalBus fans lifecycle signals out to observers, sequentially and on the caller's goroutine.
type SignalBus struct {
	mu     sync.RWMutex
	subs   map[cbus.Signal][]cbus.Observer
	logger *slog.Logger
}

// NewSignalBus creates an empty SignalBus. A nil logger disables panic reporting.
func NewSignalBus(logger *slog.Logger) *SignalBus {
	return &SignalBus{subs: make(map[cbus.Signal][]cbus.Observer), logger: logger}
}

// Subscribe appends observer to the subscribers of sig. Nil observers are ignored.
func (s *SignalBus) Subscribe(sig cbus.Signal, observer cbus.Observer) {
	if observer == nil {
		return
	}

	s.mu.Lock()
	s.subs[sig] = append(s.subs[sig], observer)
	s.mu.Unlock()
}

// Notify invokes every observer of sig in subscription order. A panicking observer is
// recovered and the remaining observers still run.
func (s *SignalBus) Notify(ctx context.Context, sender cbus.Bus, sig cbus.Signal, args ...any) {
	s.mu.RLock()
	subs := append([]cbus.Observer(nil), s.subs[sig]...)
	s.mu.RUnlock()

	for _, obs := range subs {
		s.call(ctx, obs, sender, sig, args)
	}
}

func (s *SignalBus) call(ctx context.Context, obs cbus.Observer, sender cbus.Bus, sig cbus.Signal, args []any) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.DebugContext(ctx, "signal observer panicked", "signal", sig.String(), "panic", r)
		}
	}()

	obs(ctx, sender, sig, args...)
}

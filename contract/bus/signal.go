package bus

import "context"

// Signal is a lifecycle notification point of a Bus.
type Signal int

const (
	PreStart Signal = iota + 1
	PostStart
	PreStop
	PostStop
)

func (s Signal) String() string {
	switch s {
	case PreStart:
		return "pre_start"
	case PostStart:
		return "post_start"
	case PreStop:
		return "pre_stop"
	case PostStop:
		return "post_stop"
	default:
		return "unknown"
	}
}

// Signals lists every lifecycle signal in emission order.
func Signals() []Signal { return []Signal{PreStart, PostStart, PreStop, PostStop} }

// Observer receives lifecycle signals. Observers are best-effort: a panicking observer
// is recovered and never affects the bus or the other observers.
// On PostStop, args carries the cause passed to Stop (possibly nil).
// PostStart and PostStop observers may call Start or Stop on the sender; PreStart and
// PreStop observers run while the transition is in progress and must not.
type Observer func(ctx context.Context, sender Bus, sig Signal, args ...any)

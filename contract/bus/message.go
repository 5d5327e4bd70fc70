package bus

// Kind distinguishes the two message kinds the bus routes.
type Kind int

const (
	// KindCommand marks single-handler request/response messages.
	KindCommand Kind = iota + 1
	// KindEvent marks fire-and-forget messages with zero or more handlers.
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Message is the closed root of the taxonomy. Only types embedding BaseCommand
// or BaseEvent satisfy it.
type Message interface {
	messageKind() Kind
}

// Command is an intent to change state. A command has exactly one handler and its
// result or error is returned to the caller.
type Command interface {
	Message
	isCommand()
}

// Event records something that happened. Events are queued, may have many handlers,
// and their failures never reach the publisher.
type Event interface {
	Message
	isEvent()
}

// BaseCommand is embedded by command types.
//
//	type Deposit struct {
//		bus.BaseCommand
//		Amount int
//	}
type BaseCommand struct{}

func (BaseCommand) messageKind() Kind { return KindCommand }
func (BaseCommand) isCommand()        {}

// BaseEvent is embedded by event types.
type BaseEvent struct{}

func (BaseEvent) messageKind() Kind { return KindEvent }
func (BaseEvent) isEvent()          {}

// KindOf reports the kind of m, or 0 when m is nil.
// It never calls methods on m, so typed nil pointers are safe.
func KindOf(m Message) Kind {
	switch m.(type) {
	case Command:
		return KindCommand
	case Event:
		return KindEvent
	default:
		return 0
	}
}

// Retryable lets an event type override the bus-wide attempt budget (tries).
type Retryable interface {
	Tries() int
}

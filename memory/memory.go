// Package memory wires a single-process bus whose integration events are recorded in memory.
package memory

import (
	"context"

	"github.com/next-trace/scg-message-bus/adapters/inmemory"
	"github.com/next-trace/scg-message-bus/servicebus"
)

// New constructs a SyncBus relaying integration events to an in-memory publisher and
// returns it with the publisher and a cleanup function that stops the bus.
// Register handlers before calling Start.
func New(opts ...servicebus.Option) (*servicebus.SyncBus, *inmemory.Publisher, func()) {
	pub := inmemory.New()
	sb := servicebus.NewSync(append([]servicebus.Option{servicebus.WithRelay(pub)}, opts...)...)
	cleanup := func() { _ = sb.Stop(context.Background(), nil) }

	return sb, pub, cleanup
}

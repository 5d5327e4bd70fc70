/*
Package servicebus provides an in-process command/event bus in two interchangeable
execution models that share the contract.Bus interface:

  - SyncBus: a loop goroutine drains an unbounded event queue and starts one goroutine
    per (event, handler) pair.
  - AsyncBus: a daemon goroutine supervises a set of in-flight event tasks.

Commands have exactly one handler and run inline; their result or error goes back to the
caller. Events fan out to every registered handler, are retried with exponential backoff
and are logged and dropped once the attempt budget is spent. Each invocation runs in a fresh
Unit of Work whose collected events are re-submitted to the bus.

Register every handler before Start. Stop drains all queued and running work.
*/
package servicebus

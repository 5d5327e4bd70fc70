package servicebus_test

import (
	"context"
	"testing"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	"github.com/next-trace/scg-message-bus/servicebus"
)

func TestSignalBus_PanicIsolation(t *testing.T) {
	s := servicebus.NewSignalBus(nil)

	var got []string

	s.Subscribe(cbus.PreStart, func(context.Context, cbus.Bus, cbus.Signal, ...any) { got = append(got, "first") })
	s.Subscribe(cbus.PreStart, func(context.Context, cbus.Bus, cbus.Signal, ...any) { panic("observer") })
	s.Subscribe(cbus.PreStart, func(context.Context, cbus.Bus, cbus.Signal, ...any) { got = append(got, "third") })
	s.Subscribe(cbus.PostStop, func(context.Context, cbus.Bus, cbus.Signal, ...any) { got = append(got, "other") })
	s.Subscribe(cbus.PreStart, nil)

	s.Notify(t.Context(), nil, cbus.PreStart)

	if len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Fatalf("observers: %v", got)
	}
}

func TestSignalBus_SenderAndArgs(t *testing.T) {
	b := servicebus.NewSync()

	var (
		sender cbus.Bus
		args   []any
	)

	b.Subscribe(cbus.PostStop, func(_ context.Context, s cbus.Bus, _ cbus.Signal, a ...any) {
		sender, args = s, a
	})

	if err := b.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := b.Stop(t.Context(), context.Canceled); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if sender != cbus.Bus(b) {
		t.Fatalf("sender: %v", sender)
	}

	if len(args) != 1 || args[0] != context.Canceled {
		t.Fatalf("args: %v", args)
	}
}

func TestSignal_String(t *testing.T) {
	for sig, want := range map[cbus.Signal]string{
		cbus.PreStart:  "pre_start",
		cbus.PostStart: "post_start",
		cbus.PreStop:   "pre_stop",
		cbus.PostStop:  "post_stop",
		cbus.Signal(0): "unknown",
	} {
		if sig.String() != want {
			t.Fatalf("%d: want %s, got %s", sig, want, sig)
		}
	}
}

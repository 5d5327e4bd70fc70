package unitofwork_test

import (
	"testing"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	"github.com/next-trace/scg-message-bus/unitofwork"
)

type evt struct {
	cbus.BaseEvent
	N int
}

type otherUoW struct{}

func (otherUoW) CollectEvents() []cbus.Event { return nil }

func TestBuffer_CollectDrains(t *testing.T) {
	b := unitofwork.New("repo", "engine")
	b.Add(evt{N: 1}, evt{N: 2})

	got := b.CollectEvents()
	if len(got) != 2 || got[0].(evt).N != 1 || got[1].(evt).N != 2 {
		t.Fatalf("collected=%v", got)
	}

	if again := b.CollectEvents(); len(again) != 0 {
		t.Fatalf("second collect should be empty, got %v", again)
	}

	if b.Repository() != "repo" || b.Engine() != "engine" {
		t.Fatalf("handles not kept: %v %v", b.Repository(), b.Engine())
	}
}

func TestFactory_FreshInstances(t *testing.T) {
	u1, err := unitofwork.Factory(t.Context(), nil, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	u2, _ := unitofwork.Factory(t.Context(), nil, nil)
	if u1 == u2 {
		t.Fatalf("factory must return a fresh unit of work")
	}

	if !unitofwork.Emit(u1, evt{N: 3}) {
		t.Fatalf("emit on buffer should succeed")
	}

	if len(u2.CollectEvents()) != 0 || len(u1.CollectEvents()) != 1 {
		t.Fatalf("units of work must not share state")
	}

	if unitofwork.Emit(otherUoW{}, evt{}) {
		t.Fatalf("emit on foreign unit of work should report false")
	}
}

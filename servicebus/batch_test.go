package servicebus_test

import (
	"context"
	"errors"
	"testing"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
	berr "github.com/next-trace/scg-message-bus/contract/errors"
	"github.com/next-trace/scg-message-bus/servicebus"
)

type withdraw struct {
	cbus.BaseCommand
	Amount int
}

func TestBatch_ProgressAndErrors(t *testing.T) {
	b := servicebus.NewSync()

	mustRegister(t, b, deposit{}, func(_ context.Context, msg cbus.Message, _ cbus.UnitOfWork) (any, error) {
		return msg.(deposit).Amount, nil
	})

	start(t, b)
	defer stop(t, b)

	var (
		progress []int
		failed   []int
	)

	res, err := servicebus.Batch(t.Context(), b,
		[]cbus.Command{deposit{Amount: 1}, withdraw{Amount: 2}, deposit{Amount: 3}},
		servicebus.WithBatchProgress(func(done, total int) {
			if total != 3 {
				t.Fatalf("total=%d", total)
			}

			progress = append(progress, done)
		}),
		servicebus.WithBatchOnError(func(i int, _ cbus.Command, _ error) { failed = append(failed, i) }),
	)

	if !errors.Is(err, berr.ErrHandlerNotFound) {
		t.Fatalf("want aggregated ErrHandlerNotFound, got %v", err)
	}

	if len(res) != 3 || res[0] != 1 || res[1] != nil || res[2] != 3 {
		t.Fatalf("results: %v", res)
	}

	if len(progress) != 3 || progress[2] != 3 {
		t.Fatalf("progress: %v", progress)
	}

	if len(failed) != 1 || failed[0] != 1 {
		t.Fatalf("failed: %v", failed)
	}
}

func TestBatch_ContextCancellation(t *testing.T) {
	b := servicebus.NewSync()

	ctx, cancel := context.WithCancel(t.Context())

	mustRegister(t, b, deposit{}, func(context.Context, cbus.Message, cbus.UnitOfWork) (any, error) {
		cancel()
		return "done", nil
	})

	start(t, b)
	defer stop(t, b)

	res, err := servicebus.Batch(ctx, b, []cbus.Command{deposit{}, deposit{}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}

	if res[0] != "done" || res[1] != nil {
		t.Fatalf("results: %v", res)
	}
}

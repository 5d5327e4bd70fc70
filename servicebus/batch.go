package servicebus

import (
	"context"
	"errors"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// BatchOptions controls Batch execution behavior.
// OnProgress is called after each command completes (success or failure) with done and total.
// OnError is called when a command returns an error with its index, the command value, and the error.
type BatchOptions struct {
	OnProgress func(done, total int)
	OnError    func(index int, cmd cbus.Command, err error)
}

// BatchOpt configures BatchOptions.
type BatchOpt func(*BatchOptions)

// WithBatchProgress sets the progress callback.
func WithBatchProgress(fn func(done, total int)) BatchOpt {
	return func(o *BatchOptions) { o.OnProgress = fn }
}

// WithBatchOnError sets the error callback.
func WithBatchOnError(fn func(index int, cmd cbus.Command, err error)) BatchOpt {
	return func(o *BatchOptions) { o.OnError = fn }
}

// Batch handles the commands sequentially and returns their results by index.
// Cancellation stops the batch between commands. A failed command leaves a nil result,
// its error is joined into the returned error and the batch continues.
func Batch(ctx context.Context, b cbus.Bus, cmds []cbus.Command, opts ...BatchOpt) ([]any, error) {
	var o BatchOptions
	for _, f := range opts {
		f(&o)
	}

	total := len(cmds)
	results := make([]any, total)

	var errs []error

	for i, c := range cmds {
		if err := ctx.Err(); err != nil { // canceled or deadline exceeded
			return results, errors.Join(append(errs, err)...)
		}

		res, err := b.Handle(ctx, c)
		if err != nil {
			if o.OnError != nil {
				o.OnError(i, c, err)
			}

			errs = append(errs, err)
		} else {
			results[i] = res
		}

		if o.OnProgress != nil {
			o.OnProgress(i+1, total)
		}
	}

	return results, errors.Join(errs...)
}

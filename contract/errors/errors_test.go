package errors_test

import (
	"errors"
	"fmt"
	"testing"

	berr "github.com/next-trace/scg-message-bus/contract/errors"
)

func TestCodeAndVars(t *testing.T) {
	e := berr.Code(berr.ErrCodePublishFailed)
	if e.Error() != berr.ErrCodePublishFailed {
		t.Fatalf("unexpected error string: %s", e.Error())
	}

	// exported variables must carry their codes
	tests := []struct {
		err  error
		code string
	}{
		{berr.ErrHandlerExists, berr.ErrCodeHandlerExists},
		{berr.ErrHandlerNotFound, berr.ErrCodeHandlerNotFound},
		{berr.ErrHandlerTypeMismatch, berr.ErrCodeHandlerTypeMismatch},
		{berr.ErrUnknownMessage, berr.ErrCodeUnknownMessage},
		{berr.ErrNilHandler, berr.ErrCodeNilHandler},
		{berr.ErrBusRunning, berr.ErrCodeBusRunning},
		{berr.ErrBusNotRunning, berr.ErrCodeBusNotRunning},
		{berr.ErrUnitOfWorkFailed, berr.ErrCodeUnitOfWorkFailed},
		{berr.ErrRetryExhausted, berr.ErrCodeRetryExhausted},
		{berr.ErrPublishFailed, berr.ErrCodePublishFailed},
		{berr.ErrSerializationFailed, berr.ErrCodeSerializationFailed},
	}

	for _, tc := range tests {
		if !errors.Is(tc.err, berr.Code(tc.code)) {
			t.Fatalf("expected %s to be %s", tc.err, tc.code)
		}
	}
}

func TestCodesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("handle %s: %w", "Deposit", berr.ErrHandlerNotFound)
	if !errors.Is(err, berr.ErrHandlerNotFound) {
		t.Fatalf("wrapped error lost its code: %v", err)
	}

	if errors.Is(err, berr.ErrHandlerExists) {
		t.Fatalf("wrapped error matched a different code: %v", err)
	}
}

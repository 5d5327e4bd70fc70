package errors

// Error codes for the bus contracts. Keep stable; used across adapters and bus.
const (
	ErrCodeHandlerExists       = "servicebus.handler_exists"
	ErrCodeHandlerNotFound     = "servicebus.handler_not_found"
	ErrCodeHandlerTypeMismatch = "servicebus.handler_type_mismatch"
	ErrCodeUnknownMessage      = "servicebus.unknown_message"
	ErrCodeNilHandler          = "servicebus.nil_handler"
	ErrCodeBusRunning          = "servicebus.bus_running"
	ErrCodeBusNotRunning       = "servicebus.bus_not_running"
	ErrCodeUnitOfWorkFailed    = "servicebus.unit_of_work_failed"
	ErrCodeRetryExhausted      = "servicebus.retry_exhausted"
	ErrCodePublishFailed       = "servicebus.publish_failed"
	ErrCodeSerializationFailed = "servicebus.serialization_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrHandlerExists       = Code(ErrCodeHandlerExists)
	ErrHandlerNotFound     = Code(ErrCodeHandlerNotFound)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	ErrUnknownMessage      = Code(ErrCodeUnknownMessage)
	ErrNilHandler          = Code(ErrCodeNilHandler)
	ErrBusRunning          = Code(ErrCodeBusRunning)
	ErrBusNotRunning       = Code(ErrCodeBusNotRunning)
	ErrUnitOfWorkFailed    = Code(ErrCodeUnitOfWorkFailed)
	ErrRetryExhausted      = Code(ErrCodeRetryExhausted)
	ErrPublishFailed       = Code(ErrCodePublishFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
)

package usecase

import (
	"fmt"

	"mortgage-criteria-chat/internal/domain"
)

type ErrorCode string

const (
	ErrorBackendStatus ErrorCode = "BACKEND_STATUS"
	ErrorApplication   ErrorCode = "APPLICATION_ERROR"
	ErrorTransport     ErrorCode = "TRANSPORT_FAILURE"
)

const unknownErrorMessage = "Unknown error"

// Error is a failed dispatch. Status is set for ErrorBackendStatus and Message
// carries the backend's own error text when it sent one.
type Error struct {
	Code    ErrorCode
	Reason  string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the failure reason shown to the user in the conversation.
func (e *Error) UserMessage() string {
	if e == nil {
		return unknownErrorMessage
	}
	switch e.Code {
	case ErrorBackendStatus:
		if e.Message != "" {
			return fmt.Sprintf("Backend responded with status: %d (%s)", e.Status, e.Message)
		}
		return fmt.Sprintf("Backend responded with status: %d", e.Status)
	case ErrorApplication:
		if e.Message != "" {
			return e.Message
		}
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return unknownErrorMessage
}

// Outcome maps the error code onto the exchange outcome.
func (e *Error) Outcome() domain.Outcome {
	if e == nil {
		return domain.OutcomeTransportFailure
	}
	switch e.Code {
	case ErrorBackendStatus:
		return domain.OutcomeBackendStatus
	case ErrorApplication:
		return domain.OutcomeApplicationError
	default:
		return domain.OutcomeTransportFailure
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

package ingest

import "fmt"

// Error codes for the capture worker's failure taxonomy.
const (
	CodeNotFound     = "NOT_FOUND"     // referenced Mark does not exist
	CodeInvalidInput = "INVALID_INPUT" // Mark has no URL
	CodeNetwork      = "NETWORK_ERROR" // fetch failed or body unreadable
	CodeStorage      = "STORAGE_ERROR" // directory creation or write failed
	CodeCanceled     = "CANCELED"      // job aborted by shutdown or timeout
)

// Error is a categorized worker failure. Retryable errors are re-raised so
// the queue applies its redelivery policy; non-retryable ones are dropped
// by the consumer after logging.
type Error struct {
	Code      string
	Message   string
	retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether queue redelivery can help.
func (e *Error) Retryable() bool { return e.retryable }

func notFoundError(markID string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("mark not found: %s", markID),
	}
}

func invalidInputError(markID string) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("mark has no URL: %s", markID),
	}
}

func networkError(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "fetch failed",
		retryable: true,
		cause:     cause,
	}
}

func storageError(cause error) *Error {
	return &Error{
		Code:      CodeStorage,
		Message:   "storage write failed",
		retryable: true,
		cause:     cause,
	}
}

func canceledError(cause error) *Error {
	return &Error{
		Code:      CodeCanceled,
		Message:   "job canceled",
		retryable: true,
		cause:     cause,
	}
}

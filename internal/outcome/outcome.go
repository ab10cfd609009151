// Package outcome provides the success/failure wrapper returned by
// session operations.
package outcome

// Result carries either a payload or an error message plus optional
// sub-errors. The zero value is a failure with no message.
type Result[T any] struct {
	IsSuccess    bool     `json:"is_success"`
	Data         T        `json:"data,omitzero"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Success wraps a payload in a successful Result.
func Success[T any](data T) Result[T] {
	return Result[T]{IsSuccess: true, Data: data}
}

// Failure builds a failed Result with a single message.
func Failure[T any](message string) Result[T] {
	return Result[T]{ErrorMessage: message}
}

// FailureWith builds a failed Result carrying sub-errors, typically
// collected validation rule messages.
func FailureWith[T any](message string, errs []string) Result[T] {
	return Result[T]{ErrorMessage: message, Errors: errs}
}

package core

import "errors"

// Errors surfaced by the gateway to the HTTP caller or resolved
// locally by the execution worker.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderClosed        = errors.New("order already closed")
	ErrCredentialsMissing = errors.New("venue credentials missing")
)

// ValidationError describes a rejected request field. Maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

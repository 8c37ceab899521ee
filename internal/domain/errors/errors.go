package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentExpired         = errors.New("payment has expired")
	ErrOperationInProgress    = errors.New("operation already in progress")
	ErrConcurrentUpdate       = errors.New("payment was modified concurrently")

	// Refund errors
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrDuplicateRefund = errors.New("refund already requested")

	// Gateway errors
	ErrGatewayFailed      = errors.New("gateway attempt failed")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayRejected    = errors.New("payment rejected by gateway")
	ErrGatewayTimeout     = errors.New("gateway request timeout")

	// Catalog errors
	ErrMethodNotFound = errors.New("payment method not found")
	ErrMethodExists   = errors.New("payment method already registered")

	// Lock errors
	ErrLockNotHeld = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInvalidStateError reports an operation that is illegal for the current status.
func NewInvalidStateError(op, status string) *DomainError {
	return NewDomainError(
		"invalid_state",
		fmt.Sprintf("cannot %s payment in status %s", op, status),
		ErrInvalidStateTransition,
	)
}

// NewGatewayError carries the adapter's message. The cause stays reachable
// through errors.Is/As but is not repeated in Error().
func NewGatewayError(message string, cause error) *DomainError {
	var err error = ErrGatewayFailed
	if cause != nil {
		err = gatewayCause{cause: cause}
	}
	return NewDomainError("gateway_error", message, err)
}

type gatewayCause struct{ cause error }

func (g gatewayCause) Error() string   { return ErrGatewayFailed.Error() }
func (g gatewayCause) Unwrap() []error { return []error{ErrGatewayFailed, g.cause} }

// FieldError is a single failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 1 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors builds a ValidationError from an itemized list.
// The first item populates Field and Message.
func NewValidationErrors(fields []FieldError) *ValidationError {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{
		Field:   fields[0].Field,
		Message: fields[0].Message,
		Fields:  fields,
	}
}

// NewInProgressError reports a payment locked by a concurrent operation. It
// matches both ErrInvalidStateTransition and ErrOperationInProgress.
func NewInProgressError(op string) *DomainError {
	return NewDomainError(
		"invalid_state",
		fmt.Sprintf("cannot %s payment: another operation is in progress", op),
		inProgress{},
	)
}

type inProgress struct{}

func (inProgress) Error() string { return ErrOperationInProgress.Error() }
func (inProgress) Unwrap() []error {
	return []error{ErrOperationInProgress, ErrInvalidStateTransition}
}

// NewExpiredError reports a payment whose window has elapsed.
func NewExpiredError() *DomainError {
	return NewDomainError("payment_expired", "payment window has elapsed", ErrPaymentExpired)
}

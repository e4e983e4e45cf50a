package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the view controller.

// ErrNetwork indicates a non-2xx response or a transport failure.
// Status is zero for transport failures. Detail carries the store's
// `detail` message when the failure body happened to include one.
type ErrNetwork struct {
	Operation string
	Status    int
	Detail    string
	Err       error
}

func (e *ErrNetwork) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Operation, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Operation, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return e.Operation + ": network error"
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// Reason is the user-facing part of the failure: the store's detail when
// present, otherwise the HTTP status or the transport error.
func (e *ErrNetwork) Reason() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Status != 0:
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "network error"
}

// ErrFieldValidation carries the store's field-keyed rejection of a
// create/update body.
type ErrFieldValidation struct {
	Detail string
	Fields map[string][]string
}

func (e *ErrFieldValidation) Error() string {
	if e.Detail != "" {
		return "validation failed: " + e.Detail
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	return "validation failed on: " + strings.Join(keys, ", ")
}

// Messages returns the messages for field, or nil.
func (e *ErrFieldValidation) Messages(field string) []string {
	return e.Fields[field]
}

// ErrLocalValidation is a pre-flight rejection; no request was sent.
type ErrLocalValidation struct {
	Field   string
	Message string
}

func (e *ErrLocalValidation) Error() string {
	return e.Message
}

// ErrValidation indicates bad input to a controller operation itself.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrBusy indicates a trigger was dropped because another operation is in flight.
type ErrBusy struct {
	State   string
	Trigger string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("%s dropped: controller is %s", e.Trigger, e.State)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

var (
	// ErrNoMorePages is returned by load-more when the store reported no further pages.
	ErrNoMorePages = errors.New("no more pages")

	// ErrStaleSnapshot is returned by load-more when the displayed rows were
	// loaded under a filter other than the active one.
	ErrStaleSnapshot = errors.New("displayed rows do not match the active filter; reload first")

	// ErrClosed is returned by every trigger after the controller was torn down.
	ErrClosed = errors.New("ledger controller closed")
)

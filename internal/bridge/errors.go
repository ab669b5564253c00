package bridge

import (
	"errors"

	"github.com/leandrodaf/midibridge/internal/registry"
	"go.uber.org/multierr"
)

var (
	// ErrAggregate matches every *AggregateError.
	ErrAggregate = errors.New("bridge construction failed")
	// ErrDeviceOpen wraps each individual input or output open failure.
	ErrDeviceOpen = registry.ErrDeviceOpen
)

// AggregateError is returned by New in strict mode when any port failed to
// open. It lists every individual failure.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	return "Aggregate: " + multierr.Combine(e.Errors...).Error()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

func (e *AggregateError) Is(target error) bool {
	return target == ErrAggregate
}

// Package registry maps logical output names to opened hardware outputs.
package registry

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/multierr"
)

var (
	// ErrUnknownPort is returned by Lookup for names that are not registered.
	ErrUnknownPort = errors.New("unknown port")
	// ErrDeviceOpen wraps every hardware open failure.
	ErrDeviceOpen = errors.New("device open failure")
)

// OutputOpener opens hardware outputs by name. contracts.Driver satisfies it.
type OutputOpener interface {
	OpenOutput(name string) (contracts.Output, error)
}

// Registry is built once at startup. It is not safe for concurrent use; the
// bridge event loop is its only caller once running.
type Registry struct {
	logger   contracts.Logger
	outputs  map[string]contracts.Output
	names    []string
	failures []error
}

// New opens every name in order. A name that fails to open is recorded and
// skipped; the returned error combines all such failures and the registry
// is usable either way. Whether a failure is fatal is the caller's call.
func New(opener OutputOpener, names []string, logger contracts.Logger) (*Registry, error) {
	r := &Registry{
		logger:  logger,
		outputs: make(map[string]contracts.Output, len(names)),
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			logger.Warn("Duplicate MIDI output port ignored", logger.Field().String("port", name))
			continue
		}
		seen[name] = true

		out, err := opener.OpenOutput(name)
		if err != nil {
			err = fmt.Errorf("%w: output %q: %v", ErrDeviceOpen, name, err)
			logger.Error("Failed to open MIDI output port",
				logger.Field().String("port", name),
				logger.Field().Error("error", err))
			r.failures = append(r.failures, err)
			continue
		}

		r.outputs[name] = out
		r.names = append(r.names, name)
		logger.Info("Opened MIDI output port", logger.Field().String("port", name))
	}

	return r, multierr.Combine(r.failures...)
}

// SelectPortName returns the output registered as name, or nil when the name
// is unknown or failed to open. Callers drop the message on nil.
func (r *Registry) SelectPortName(name string) contracts.Output {
	if r == nil {
		return nil
	}
	return r.outputs[name]
}

// Lookup is SelectPortName with an error for the miss.
func (r *Registry) Lookup(name string) (contracts.Output, error) {
	if out := r.SelectPortName(name); out != nil {
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPort, name)
}

// Names returns the successfully opened names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Failures returns the open errors recorded by New.
func (r *Registry) Failures() []error {
	return append([]error(nil), r.failures...)
}

// Remove closes and forgets name. Later lookups of name return nil.
func (r *Registry) Remove(name string) error {
	out, ok := r.outputs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPort, name)
	}
	delete(r.outputs, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	r.logger.Info("Removed MIDI output port", r.logger.Field().String("port", name))
	return out.Close()
}

// Close closes every registered output.
func (r *Registry) Close() error {
	var err error
	for _, name := range r.names {
		err = multierr.Append(err, r.outputs[name].Close())
	}
	r.outputs = map[string]contracts.Output{}
	r.names = nil
	return err
}

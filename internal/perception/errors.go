package perception

import (
	"fmt"

	"scholarforge/internal/types"
)

// ConfigurationError reports a client that cannot work at all, typically a
// missing credential. It is never retried.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Provider, e.Reason)
}

// TransportError is a failed provider call that may succeed on retry.
type TransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvocationError is returned when every attempt failed.
type InvocationError struct {
	Module   types.ModuleID
	Attempts int
	Last     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: max retries exceeded after %d attempts: %v", e.Module, e.Attempts, e.Last)
}

func (e *InvocationError) Unwrap() error { return e.Last }

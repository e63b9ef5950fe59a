package apperrors

import "fmt"

// ErrStoreUnavailable is returned when the durable blob store capability is
// absent or unreachable in the current environment.
type ErrStoreUnavailable struct {
	Provider string
}

// Error implements the error interface.
func (e *ErrStoreUnavailable) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("durable store %q is unavailable", e.Provider)
	}
	return "durable store is unavailable"
}

// Is allows for error checking with errors.Is().
func (e *ErrStoreUnavailable) Is(target error) bool {
	_, ok := target.(*ErrStoreUnavailable)
	return ok
}

// NewStoreUnavailableError creates a new ErrStoreUnavailable.
func NewStoreUnavailableError(provider string) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{Provider: provider}
}

// ErrNotInitialized is returned when a durable cache manager operation is
// attempted before Initialize succeeded.
type ErrNotInitialized struct {
	Operation string
}

// Error implements the error interface.
func (e *ErrNotInitialized) Error() string {
	return fmt.Sprintf("durable cache manager not initialized (operation %q)", e.Operation)
}

// Is allows for error checking with errors.Is().
func (e *ErrNotInitialized) Is(target error) bool {
	_, ok := target.(*ErrNotInitialized)
	return ok
}

// NewNotInitializedError creates a new ErrNotInitialized.
func NewNotInitializedError(operation string) *ErrNotInitialized {
	return &ErrNotInitialized{Operation: operation}
}

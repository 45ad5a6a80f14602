package lua

import "errors"

// Errors for Lua runtime operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrModuleNotFound is returned when no search path entry resolves a module name.
	ErrModuleNotFound = errors.New("lua module not found")

	// ErrNotCallable is returned when a value that should be a function is not.
	ErrNotCallable = errors.New("lua value is not callable")
)

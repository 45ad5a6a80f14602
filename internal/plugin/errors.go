package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrInvalidIdentifier is returned for empty or malformed plugin identifiers.
	ErrInvalidIdentifier = errors.New("invalid plugin identifier")

	// ErrPluginNotFound is returned when a plugin path or module cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginLoad matches every *LoadError.
	ErrPluginLoad = errors.New("plugin failed to load")

	// ErrInvalidEntryPoint is returned when a declared entry point is not a
	// function or does not follow the calling convention.
	ErrInvalidEntryPoint = errors.New("invalid entry point")

	// ErrInvalidManifest is returned when plugin metadata cannot be parsed or validated.
	ErrInvalidManifest = errors.New("invalid plugin manifest")

	// ErrNoModule is returned when a plugin directory has no loadable module.
	ErrNoModule = errors.New("plugin has no module (init.lua or <name>.lua)")
)

// LoadError reports a plugin that was located but failed while its module
// code ran or while its entry points were extracted. The original cause is
// preserved for errors.As / errors.Is.
type LoadError struct {
	Identifier string
	Module     string
	Err        error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin %q (module %s) failed to load: %v", e.Identifier, e.Module, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPluginLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrPluginLoad
}

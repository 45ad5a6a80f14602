package plugin

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ModuleSpec describes a successfully loaded plugin.
//
// Each load produces a new ModuleSpec with a fresh LoadID; reloading a
// module replaces it wholesale rather than merging into an earlier spec.
type ModuleSpec struct {
	// Identifier is the string passed to Load.
	Identifier string

	// Module is the name the plugin was required under.
	Module string

	// SearchDir is the directory prepended for path identifiers.
	SearchDir string

	// Source is the file require loaded, or "preload:<name>".
	Source string

	// Manifest is the plugin manifest, or nil if the plugin has none.
	Manifest *Manifest

	// Handle is the value the module returned (its package.loaded entry).
	Handle lua.LValue

	// LoadID uniquely identifies this load.
	LoadID string

	// LoadedAt records when the load completed.
	LoadedAt time.Time

	entryPoints *EntryPointTable
}

// EntryPoints returns the entry point table. Never nil.
func (s *ModuleSpec) EntryPoints() *EntryPointTable {
	if s.entryPoints == nil {
		return NewEntryPointTable()
	}
	return s.entryPoints
}

// Lookup returns the named entry point.
func (s *ModuleSpec) Lookup(name string) (*EntryPoint, bool) {
	return s.entryPoints.Lookup(name)
}

// Invoke looks up and invokes the named entry point.
func (s *ModuleSpec) Invoke(ctx context.Context, name string, args []string) (any, error) {
	ep, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry point %q", ErrInvalidEntryPoint, s.Module, name)
	}
	return ep.Invoke(ctx, args)
}

// String returns a string representation of the spec.
func (s *ModuleSpec) String() string {
	if s.Manifest != nil && s.Manifest.Name != "" {
		return fmt.Sprintf("%s (%s, %d entry points)", s.Module, s.Manifest, s.entryPoints.Len())
	}
	return fmt.Sprintf("%s (%d entry points)", s.Module, s.entryPoints.Len())
}

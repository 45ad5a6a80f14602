package api

import (
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/explainer/internal/plugin/lua"
)

// RootModule is the name scripts require to reach the host API.
const RootModule = "explainer"

// Module represents a Lua API module exposed to plugins and command scripts.
type Module interface {
	// Name returns the module name (e.g., "host", "util").
	Name() string

	// Table builds the module table in the given Lua state.
	Table(L *lua.LState) *lua.LTable
}

// Registry manages API modules and their installation into Lua states.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a registry holding mods.
func NewRegistry(mods ...Module) (*Registry, error) {
	r := &Registry{
		modules: make(map[string]Module),
	}
	for _, mod := range mods {
		if err := r.Register(mod); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}

	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot returns the registered modules sorted by name.
func (r *Registry) snapshot() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mods := make([]Module, 0, len(r.modules))
	for _, mod := range r.modules {
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool {
		return mods[i].Name() < mods[j].Name()
	})
	return mods
}

// Install preloads the API into state. Scripts use either the aggregate
// module or a single submodule:
//
//	local explainer = require("explainer")
//	local util = require("explainer.util")
//
// A nil registry installs nothing.
func (r *Registry) Install(state *plua.State) error {
	if r == nil {
		return nil
	}

	mods := r.snapshot()
	for _, mod := range mods {
		if err := state.Preload(RootModule+"."+mod.Name(), func(L *lua.LState) int {
			L.Push(mod.Table(L))
			return 1
		}); err != nil {
			return fmt.Errorf("failed to install module %q: %w", mod.Name(), err)
		}
	}

	return state.Preload(RootModule, func(L *lua.LState) int {
		root := L.NewTable()
		for _, mod := range mods {
			L.SetField(root, mod.Name(), mod.Table(L))
		}
		L.Push(root)
		return 1
	})
}

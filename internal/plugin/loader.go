package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/explainer/internal/plugin/api"
	plua "github.com/dshills/explainer/internal/plugin/lua"
)

// entryPointsField is the module table field holding exported callables.
const entryPointsField = "entry_points"

// Loader imports plugins into a single Lua state.
//
// Loads are serialized: the search path and module cache are shared by every
// plugin loaded through the same Loader.
type Loader struct {
	mu sync.Mutex

	state *plua.State
	log   *log.Logger
	now   func() time.Time

	// Construction options
	searchPaths []string
	basePath    *string
	modules     *api.Registry
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSearchPaths sets the initial search directories, in priority order.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.searchPaths = append(l.searchPaths, paths...)
	}
}

// WithBasePath replaces the interpreter default path appended after the
// search directories.
func WithBasePath(path string) LoaderOption {
	return func(l *Loader) {
		l.basePath = &path
	}
}

// WithModules preloads the host API modules into the plugin runtime.
func WithModules(reg *api.Registry) LoaderOption {
	return func(l *Loader) {
		l.modules = reg
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.log = logger
		}
	}
}

// WithClock overrides the time source used for LoadedAt.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoader creates a loader with its own Lua state.
func NewLoader(opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		log: log.New(io.Discard),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	stateOpts := []plua.StateOption{plua.WithSearchDirs(absPaths(l.searchPaths)...)}
	if l.basePath != nil {
		stateOpts = append(stateOpts, plua.WithBasePath(*l.basePath))
	}

	state, err := plua.NewState(stateOpts...)
	if err != nil {
		return nil, fmt.Errorf("create lua state: %w", err)
	}
	if err := l.modules.Install(state); err != nil {
		_ = state.Close()
		return nil, err
	}
	l.state = state

	return l, nil
}

// DefaultPluginPaths returns the default plugin search paths.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 3)

	// Project plugins: .explainer/plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".explainer", "plugins"))
	}

	// User plugins: ~/.config/explainer/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "explainer", "plugins"))
		paths = append(paths, filepath.Join(home, ".local", "share", "explainer", "plugins"))
	}

	return paths
}

// Resolve determines the module and search directory for an identifier
// without loading anything.
func (l *Loader) Resolve(identifier string) (Target, error) {
	return Resolve(identifier)
}

// Load imports the plugin named by identifier and extracts its entry points.
//
// Path identifiers put their parent directory at the head of the search path
// before the import is attempted; that change is kept even if the import
// fails. A module that is already cached is evicted and executed again, so
// the returned spec always reflects the current source.
func (l *Loader) Load(ctx context.Context, identifier string) (*ModuleSpec, error) {
	target, err := Resolve(identifier)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsClosed() {
		return nil, plua.ErrStateClosed
	}

	if target.SearchDir != "" {
		if l.state.PrependSearchDir(target.SearchDir) {
			l.log.Debug("search path extended", "dir", target.SearchDir)
		} else {
			l.log.Debug("search dir moved to head", "dir", target.SearchDir)
		}
	}

	source, err := l.state.FindModule(target.Module)
	if err != nil {
		if errors.Is(err, plua.ErrStateClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginNotFound, identifier, err)
	}

	if l.state.Forget(target.Module) {
		l.log.Debug("reloading plugin", "module", target.Module)
	}

	handle, err := l.state.Require(ctx, target.Module)
	if err != nil {
		return nil, &LoadError{Identifier: identifier, Module: target.Module, Err: err}
	}

	manifest, err := FindManifest(source, target.Module)
	if err != nil {
		return nil, &LoadError{Identifier: identifier, Module: target.Module, Err: err}
	}

	entries, err := l.extractEntryPoints(ctx, target.Module, handle, manifest)
	if err != nil {
		return nil, &LoadError{Identifier: identifier, Module: target.Module, Err: err}
	}

	spec := &ModuleSpec{
		Identifier:  identifier,
		Module:      target.Module,
		SearchDir:   target.SearchDir,
		Source:      source,
		Manifest:    manifest,
		Handle:      handle,
		LoadID:      uuid.NewString(),
		LoadedAt:    l.now(),
		entryPoints: entries,
	}

	l.log.Debug("plugin loaded",
		"plugin", identifier,
		"module", target.Module,
		"source", source,
		"entry_points", strings.Join(entries.Names(), ","),
	)

	return spec, nil
}

// extractEntryPoints collects callables declared by the manifest and by the
// module's entry_points field. Manifest declarations win on name clashes.
func (l *Loader) extractEntryPoints(ctx context.Context, module string, handle lua.LValue, manifest *Manifest) (*EntryPointTable, error) {
	var eps []*EntryPoint

	for _, name := range manifest.EntryPointNames() {
		target := manifest.EntryPoints[name]
		owner, attr, err := ParseTarget(target, module)
		if err != nil {
			return nil, fmt.Errorf("%w: entry point %q: %w", ErrInvalidManifest, name, err)
		}

		value := handle
		if owner != module {
			value, err = l.state.Require(ctx, owner)
			if err != nil {
				return nil, fmt.Errorf("entry point %q: require %s: %w", name, owner, err)
			}
		}
		for _, key := range strings.Split(attr, ".") {
			value = l.state.Field(value, key)
		}

		ep, err := newEntryPoint(l.state, name, owner+":"+attr, value)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}

	declared := l.state.Fields(l.state.Field(handle, entryPointsField))
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if manifest != nil {
			if _, ok := manifest.EntryPoints[name]; ok {
				l.log.Debug("manifest entry point overrides module field", "module", module, "entry_point", name)
				continue
			}
		}
		ep, err := newEntryPoint(l.state, name, module+":"+entryPointsField+"."+name, declared[name])
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}

	return NewEntryPointTable(eps...), nil
}

// SearchPath returns the search directories, head first.
func (l *Loader) SearchPath() []string {
	return l.state.SearchDirs()
}

// IsLoaded reports whether module is in the module cache.
func (l *Loader) IsLoaded(module string) bool {
	return l.state.IsLoaded(module)
}

// State returns the Lua state plugins are loaded into.
func (l *Loader) State() *plua.State {
	return l.state
}

// Close releases the Lua state. Entry points from earlier loads stop working.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Close()
}

// absPaths makes relative paths absolute, dropping empty entries.
func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := expandPath(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

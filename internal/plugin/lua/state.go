package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua with the search path and module cache bookkeeping
// needed to import plugins.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe. Every exported method
// takes the State mutex; callers must not touch the LState directly while
// another goroutine may be using the State.
type State struct {
	L *lua.LState

	mu sync.Mutex

	// Search directories, head first.
	dirs []string

	// Interpreter default path appended after the search directories.
	basePath    string
	hasBasePath bool

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithSearchDirs sets the initial search directories, in priority order.
func WithSearchDirs(dirs ...string) StateOption {
	return func(s *State) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			s.dirs = appendUnique(s.dirs, filepath.Clean(dir))
		}
	}
}

// WithBasePath replaces the interpreter default path that follows the search
// directories. An empty string leaves only the search directories.
func WithBasePath(path string) StateOption {
	return func(s *State) {
		s.basePath = path
		s.hasBasePath = true
	}
}

// NewState creates a Lua state with the full standard library opened.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{}
	for _, opt := range opts {
		opt(state)
	}

	state.L = lua.NewState()

	if !state.hasBasePath {
		path, ok := state.L.GetField(state.L.GetGlobal("package"), "path").(lua.LString)
		if !ok {
			state.L.Close()
			return nil, fmt.Errorf("package.path is not a string")
		}
		state.basePath = string(path)
	}

	state.syncPackagePath()
	return state, nil
}

// dirPatterns returns the package.path templates contributed by one directory.
func dirPatterns(dir string) []string {
	return []string{
		filepath.Join(dir, "?.lua"),
		filepath.Join(dir, "?", "init.lua"),
		filepath.Join(dir, "?", "?.lua"),
	}
}

// syncPackagePath rewrites package.path from the directory list.
// Caller must hold s.mu (or be constructing the state).
func (s *State) syncPackagePath() {
	patterns := make([]string, 0, len(s.dirs)*3+1)
	for _, dir := range s.dirs {
		patterns = append(patterns, dirPatterns(dir)...)
	}
	if s.basePath != "" {
		patterns = append(patterns, s.basePath)
	}
	s.L.SetField(s.L.GetGlobal("package"), "path", lua.LString(strings.Join(patterns, ";")))
}

// SearchDirs returns the search directories, head first.
func (s *State) SearchDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.dirs...)
}

// PackagePath returns the current value of package.path.
func (s *State) PackagePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ""
	}
	path, _ := s.L.GetField(s.L.GetGlobal("package"), "path").(lua.LString)
	return string(path)
}

// PrependSearchDir puts dir at the head of the search path.
// A directory that is already present is moved rather than duplicated.
// Returns true if the directory was not present before.
func (s *State) PrependSearchDir(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	dir = filepath.Clean(dir)
	added := true
	rest := make([]string, 0, len(s.dirs))
	for _, existing := range s.dirs {
		if existing == dir {
			added = false
			continue
		}
		rest = append(rest, existing)
	}
	s.dirs = append([]string{dir}, rest...)
	s.syncPackagePath()
	return added
}

// FindModule resolves a module name against package.preload and the current
// search path without executing anything. Returns the file that require would
// load, or "preload:<name>" for preloaded modules.
func (s *State) FindModule(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStateClosed
	}

	pkg := s.L.GetGlobal("package")
	if preload, ok := s.L.GetField(pkg, "preload").(*lua.LTable); ok {
		if preload.RawGetString(name) != lua.LNil {
			return "preload:" + name, nil
		}
	}

	file := strings.ReplaceAll(name, ".", string(os.PathSeparator))
	path, _ := s.L.GetField(pkg, "path").(lua.LString)

	var tried []string
	for _, pattern := range strings.Split(string(path), ";") {
		if pattern == "" {
			continue
		}
		candidate := strings.ReplaceAll(pattern, "?", file)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}

	return "", fmt.Errorf("%w: %s (tried %s)", ErrModuleNotFound, name, strings.Join(tried, ", "))
}

// loadedTable returns the module cache consulted by require (package.loaded).
// Caller must hold s.mu.
func (s *State) loadedTable() *lua.LTable {
	loaded, _ := s.L.GetField(s.L.Get(lua.RegistryIndex), "_LOADED").(*lua.LTable)
	return loaded
}

// IsLoaded reports whether name is present in package.loaded.
func (s *State) IsLoaded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	loaded := s.loadedTable()
	return loaded != nil && loaded.RawGetString(name) != lua.LNil
}

// Loaded returns the sorted names in package.loaded.
func (s *State) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var names []string
	if loaded := s.loadedTable(); loaded != nil {
		loaded.ForEach(func(k, _ lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				names = append(names, string(ks))
			}
		})
	}
	sort.Strings(names)
	return names
}

// Forget removes name from package.loaded so the next require executes the
// module again. Returns true if the module was cached.
func (s *State) Forget(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	loaded := s.loadedTable()
	if loaded == nil || loaded.RawGetString(name) == lua.LNil {
		return false
	}
	loaded.RawSetString(name, lua.LNil)
	return true
}

// dropSentinel clears the loop-detection userdata require leaves in
// package.loaded when a module raises during loading.
func (s *State) dropSentinel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	loaded := s.loadedTable()
	if loaded == nil {
		return
	}
	if _, ok := loaded.RawGetString(name).(*lua.LUserData); ok {
		loaded.RawSetString(name, lua.LNil)
	}
}

// Require imports a module through the interpreter's require function and
// returns the value it stored in package.loaded. A module that raises while
// loading is dropped from the cache so a later require can retry it.
func (s *State) Require(ctx context.Context, name string) (lua.LValue, error) {
	results, err := s.call(ctx, func() (lua.LValue, error) {
		return s.L.GetGlobal("require"), nil
	}, 1, lua.LString(name))
	if err != nil {
		s.dropSentinel(name)
		return lua.LNil, err
	}
	if len(results) == 0 {
		return lua.LNil, nil
	}
	return results[0], nil
}

// Exec loads a Lua file as a chunk, runs it and returns the chunk's results.
func (s *State) Exec(ctx context.Context, path string) ([]lua.LValue, error) {
	return s.call(ctx, func() (lua.LValue, error) {
		return s.L.LoadFile(path)
	}, lua.MultRet)
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// CallFunction calls fn with args and returns all of its results.
// Errors raised by the Lua code are returned unchanged.
func (s *State) CallFunction(ctx context.Context, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	if fn == nil {
		return nil, ErrNotCallable
	}
	if _, ok := fn.(*lua.LFunction); !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotCallable, fn.Type())
	}
	return s.call(ctx, func() (lua.LValue, error) {
		return fn, nil
	}, lua.MultRet, args...)
}

// call resolves a function under the lock and invokes it in protected mode.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) call(ctx context.Context, resolve func() (lua.LValue, error), nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	if ctx.Done() != nil {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	var results []lua.LValue
	err := s.doWithRecovery(func() error {
		fn, err := resolve()
		if err != nil {
			return err
		}

		// Record stack top before pushing anything
		stackTop := s.L.GetTop()

		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		if err := s.L.PCall(len(args), nret, nil); err != nil {
			return err
		}

		nRet := s.L.GetTop() - stackTop
		results = make([]lua.LValue, 0, max(nRet, 0))
		for i := 1; i <= nRet; i++ {
			results = append(results, s.L.Get(stackTop+i))
		}
		if nRet > 0 {
			s.L.Pop(nRet)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Field reads key from a table (honouring __index). Non-indexable values
// yield LNil instead of raising.
func (s *State) Field(v lua.LValue, key string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}

	switch v.(type) {
	case *lua.LTable, *lua.LUserData:
	default:
		return lua.LNil
	}

	result := lua.LValue(lua.LNil)
	_ = s.doWithRecovery(func() error {
		result = s.L.GetField(v, key)
		return nil
	})
	return result
}

// Preload registers a Go loader in package.preload so require(name) returns
// whatever the loader pushes.
func (s *State) Preload(name string, loader lua.LGFunction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	s.L.PreloadModule(name, loader)
	return nil
}

// Fields returns the string-keyed entries of a table without invoking
// metamethods. Non-table values yield nil.
func (s *State) Fields(v lua.LValue) map[string]lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := v.(*lua.LTable)
	if !ok || s.closed {
		return nil
	}

	fields := make(map[string]lua.LValue)
	tbl.ForEach(func(k, val lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			fields[string(ks)] = val
		}
	})
	return fields
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}

	return s.L.GetGlobal(name)
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: Direct access bypasses the mutex. The caller is responsible for
// ensuring no other goroutine uses the State concurrently.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

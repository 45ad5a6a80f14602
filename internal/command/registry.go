package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/explainer/internal/plugin"
	"github.com/dshills/explainer/internal/plugin/api"
	plua "github.com/dshills/explainer/internal/plugin/lua"
)

const (
	filePrefix = "cmd_"
	fileSuffix = ".lua"

	// callableField names the function a command script exports.
	callableField = "cli"

	// shortField names the optional one-line help string.
	shortField = "short"
)

// namePattern validates command names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// Command is a loaded command script.
type Command struct {
	Name  string
	Path  string
	Short string

	fn    *lua.LFunction
	state *plua.State
}

// Run calls the command's cli function. With no args it is called with zero
// arguments; otherwise args are joined with single spaces into one string.
func (c *Command) Run(ctx context.Context, args []string) (any, error) {
	results, err := c.state.CallFunction(ctx, c.fn, plugin.CallArgs(args)...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return plua.ToGoValue(results[0]), nil
}

// Close releases the command's Lua state.
func (c *Command) Close() error {
	return c.state.Close()
}

// Registry lists and loads command scripts from namespace directories.
// Nothing is cached: every query reads the directories again.
type Registry struct {
	mu          sync.RWMutex
	namespaces  []string
	diagnostics []Diagnostic

	modules *api.Registry
	log     *log.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithNamespaces sets the command directories, in priority order.
func WithNamespaces(dirs ...string) Option {
	return func(r *Registry) {
		for _, dir := range dirs {
			r.addNamespace(dir)
		}
	}
}

// WithModules preloads the host API modules into every command runtime.
func WithModules(reg *api.Registry) Option {
	return func(r *Registry) {
		r.modules = reg
	}
}

// WithLogger sets the logger used for swallowed load failures.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.log = logger
		}
	}
}

// New creates a command registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultNamespaces returns the default command directories.
func DefaultNamespaces() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, ".explainer", "commands"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "explainer", "commands"))
	}
	return dirs
}

// AddNamespace appends a command directory. Duplicates are ignored.
func (r *Registry) AddNamespace(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addNamespace(dir)
}

func (r *Registry) addNamespace(dir string) {
	if dir == "" {
		return
	}
	dir = filepath.Clean(dir)
	for _, existing := range r.namespaces {
		if existing == dir {
			return
		}
	}
	r.namespaces = append(r.namespaces, dir)
}

// Namespaces returns the command directories, in priority order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.namespaces...)
}

// List returns the sorted, de-duplicated command names found in the
// namespaces. Scripts are not executed, so broken commands are listed too.
func (r *Registry) List() []string {
	seen := make(map[string]bool)
	for _, dir := range r.Namespaces() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name, ok := commandName(entry.Name())
			if ok {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// commandName strips the cmd_ prefix and .lua suffix from a file name.
func commandName(file string) (string, bool) {
	if !strings.HasPrefix(file, filePrefix) || !strings.HasSuffix(file, fileSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(file, filePrefix), fileSuffix)
	if !namePattern.MatchString(name) {
		return "", false
	}
	return name, true
}

// Path returns the script implementing name, from the first namespace that
// has one.
func (r *Registry) Path(name string) (string, bool) {
	if !namePattern.MatchString(name) {
		return "", false
	}
	for _, dir := range r.Namespaces() {
		path := filepath.Join(dir, filePrefix+name+fileSuffix)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Get loads the named command. It returns nil if the command does not exist
// or its script cannot be used; the reason is recorded in Diagnostics.
// The caller owns the returned Command and should Close it.
func (r *Registry) Get(ctx context.Context, name string) *Command {
	cmd, diag := r.load(ctx, name)
	if diag != nil {
		r.record(*diag)
		return nil
	}
	return cmd
}

// Check loads every listed command and returns diagnostics for the ones that
// cannot be used. It does not record them.
func (r *Registry) Check(ctx context.Context) []Diagnostic {
	var diags []Diagnostic
	for _, name := range r.List() {
		cmd, diag := r.load(ctx, name)
		if diag != nil {
			diags = append(diags, *diag)
			continue
		}
		_ = cmd.Close()
	}
	return diags
}

// Diagnostics returns the failures recorded by Get, oldest first.
func (r *Registry) Diagnostics() []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Diagnostic(nil), r.diagnostics...)
}

// record stores a diagnostic and logs it.
func (r *Registry) record(d Diagnostic) {
	r.mu.Lock()
	r.diagnostics = append(r.diagnostics, d)
	r.mu.Unlock()

	r.log.Warn("command unavailable", "command", d.Command, "code", d.Code, "path", d.Path, "err", d.Cause)
}

// load executes a command script in a fresh Lua state.
func (r *Registry) load(ctx context.Context, name string) (*Command, *Diagnostic) {
	if !namePattern.MatchString(name) {
		return nil, &Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeInvalidName,
			Command:  name,
			Message:  "invalid command name",
		}
	}

	path, ok := r.Path(name)
	if !ok {
		return nil, &Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeNotFound,
			Command:  name,
			Message:  fmt.Sprintf("no %s%s%s in %s", filePrefix, name, fileSuffix, strings.Join(r.Namespaces(), ", ")),
		}
	}

	state, err := plua.NewState(plua.WithSearchDirs(filepath.Dir(path)))
	if err == nil {
		err = r.modules.Install(state)
	}
	if err != nil {
		if state != nil {
			_ = state.Close()
		}
		return nil, &Diagnostic{
			Severity: SeverityError,
			Code:     CodeRuntime,
			Command:  name,
			Message:  "cannot create Lua state",
			Path:     path,
			Cause:    err,
		}
	}

	results, err := state.Exec(ctx, path)
	if err != nil {
		_ = state.Close()
		return nil, &Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeImportFailed,
			Command:  name,
			Message:  err.Error(),
			Path:     path,
			Cause:    fmt.Errorf("%w: %s: %w", ErrCommandImport, name, err),
		}
	}

	var exported lua.LValue = lua.LNil
	if len(results) > 0 {
		exported = results[0]
	}

	fn, ok := state.Field(exported, callableField).(*lua.LFunction)
	if !ok {
		fn, ok = state.GetGlobal(callableField).(*lua.LFunction)
	}
	if !ok {
		_ = state.Close()
		return nil, &Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeNoCallable,
			Command:  name,
			Message:  "script defines no cli function",
			Path:     path,
		}
	}

	short, ok := state.Field(exported, shortField).(lua.LString)
	if !ok {
		short, _ = state.GetGlobal(shortField).(lua.LString)
	}

	return &Command{
		Name:  name,
		Path:  path,
		Short: string(short),
		fn:    fn,
		state: state,
	}, nil
}

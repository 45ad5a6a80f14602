package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/explainer/internal/plugin/lua"
)

// Convention describes how an entry point expects to receive arguments.
type Convention int

// Calling conventions.
const (
	// ConventionNoArgs - function declares no parameters.
	ConventionNoArgs Convention = iota

	// ConventionString - function takes one string (or is variadic).
	ConventionString

	// ConventionNative - Go function registered with the interpreter.
	ConventionNative
)

// String returns a string representation of the convention.
func (c Convention) String() string {
	switch c {
	case ConventionNoArgs:
		return "no-args"
	case ConventionString:
		return "string"
	case ConventionNative:
		return "native"
	default:
		return "unknown"
	}
}

// conventionOf inspects a function prototype. Functions with more than one
// fixed parameter cannot be driven by the single joined string argument.
func conventionOf(fn *lua.LFunction) (Convention, error) {
	if fn.IsG || fn.Proto == nil {
		return ConventionNative, nil
	}
	params := int(fn.Proto.NumParameters)
	switch {
	case params > 1:
		return 0, fmt.Errorf("%w: declares %d parameters, at most 1 is supported", ErrInvalidEntryPoint, params)
	case params == 1 || fn.Proto.IsVarArg != 0:
		return ConventionString, nil
	default:
		return ConventionNoArgs, nil
	}
}

// JoinArgs applies the invocation policy shared by entry points and commands:
// no arguments means a zero-argument call, otherwise the arguments are joined
// with single spaces into one string. ok is false for the zero-argument case.
func JoinArgs(args []string) (joined string, ok bool) {
	if len(args) == 0 {
		return "", false
	}
	return strings.Join(args, " "), true
}

// CallArgs converts invocation arguments into the Lua values passed to an
// entry point.
func CallArgs(args []string) []lua.LValue {
	joined, ok := JoinArgs(args)
	if !ok {
		return nil
	}
	return []lua.LValue{lua.LString(joined)}
}

// EntryPoint is a named callable exported by a loaded plugin.
type EntryPoint struct {
	name       string
	target     string
	convention Convention
	fn         *lua.LFunction
	state      *plua.State
}

// newEntryPoint validates value as a callable entry point.
func newEntryPoint(state *plua.State, name, target string, value lua.LValue) (*EntryPoint, error) {
	fn, ok := value.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) is a %s, not a function", ErrInvalidEntryPoint, name, target, value.Type())
	}
	convention, err := conventionOf(fn)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", name, target, err)
	}
	return &EntryPoint{
		name:       name,
		target:     target,
		convention: convention,
		fn:         fn,
		state:      state,
	}, nil
}

// Name returns the entry point name.
func (e *EntryPoint) Name() string {
	return e.name
}

// Target returns where the callable was found (e.g. "mod:run").
func (e *EntryPoint) Target() string {
	return e.target
}

// Convention returns the calling convention detected at load time.
func (e *EntryPoint) Convention() Convention {
	return e.convention
}

// Function returns the underlying Lua function.
func (e *EntryPoint) Function() *lua.LFunction {
	return e.fn
}

// Invoke calls the entry point. With no args it is called with zero
// arguments; otherwise args are joined with single spaces and passed as one
// string. The first return value is converted to a Go value. Errors raised
// by the plugin are returned unchanged.
func (e *EntryPoint) Invoke(ctx context.Context, args []string) (any, error) {
	results, err := e.state.CallFunction(ctx, e.fn, CallArgs(args)...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return plua.ToGoValue(results[0]), nil
}

// EntryPointTable maps entry point names to callables.
// A nil table is valid and empty.
type EntryPointTable struct {
	entries map[string]*EntryPoint
	names   []string
}

// NewEntryPointTable builds a table from entry points. Later duplicates are ignored.
func NewEntryPointTable(eps ...*EntryPoint) *EntryPointTable {
	t := &EntryPointTable{entries: make(map[string]*EntryPoint, len(eps))}
	for _, ep := range eps {
		if ep == nil {
			continue
		}
		if _, exists := t.entries[ep.name]; exists {
			continue
		}
		t.entries[ep.name] = ep
		t.names = append(t.names, ep.name)
	}
	sort.Strings(t.names)
	return t
}

// Lookup returns the entry point registered under name.
func (t *EntryPointTable) Lookup(name string) (*EntryPoint, bool) {
	if t == nil {
		return nil, false
	}
	ep, ok := t.entries[name]
	return ep, ok
}

// Names returns the entry point names, sorted.
func (t *EntryPointTable) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// Entries returns the entry points sorted by name.
func (t *EntryPointTable) Entries() []*EntryPoint {
	if t == nil {
		return nil
	}
	eps := make([]*EntryPoint, 0, len(t.names))
	for _, name := range t.names {
		eps = append(eps, t.entries[name])
	}
	return eps
}

// Len returns the number of entry points.
func (t *EntryPointTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

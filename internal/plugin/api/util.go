package api

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// UtilModule implements the explainer.util API module.
// Entry points receive their arguments as one space-joined string; these
// helpers split and reassemble such strings.
type UtilModule struct{}

// NewUtilModule creates a new util module.
func NewUtilModule() *UtilModule {
	return &UtilModule{}
}

// Name returns the module name.
func (m *UtilModule) Name() string {
	return "util"
}

// Table builds the module table.
func (m *UtilModule) Table(L *lua.LState) *lua.LTable {
	mod := L.NewTable()

	L.SetField(mod, "fields", L.NewFunction(m.fields))
	L.SetField(mod, "split", L.NewFunction(m.split))
	L.SetField(mod, "trim", L.NewFunction(m.trim))
	L.SetField(mod, "starts_with", L.NewFunction(m.startsWith))
	L.SetField(mod, "ends_with", L.NewFunction(m.endsWith))
	L.SetField(mod, "join", L.NewFunction(m.join))

	return mod
}

// stringsTable converts a Go slice to a Lua array.
func stringsTable(L *lua.LState, parts []string) *lua.LTable {
	tbl := L.CreateTable(len(parts), 0)
	for i, part := range parts {
		tbl.RawSetInt(i+1, lua.LString(part))
	}
	return tbl
}

// fields(str) -> {words}
// Splits on runs of whitespace. nil yields an empty table.
func (m *UtilModule) fields(L *lua.LState) int {
	str := L.OptString(1, "")
	L.Push(stringsTable(L, strings.Fields(str)))
	return 1
}

// split(str, sep) -> {parts}
// Splits a string by separator.
func (m *UtilModule) split(L *lua.LState) int {
	str := L.CheckString(1)
	sep := L.CheckString(2)
	L.Push(stringsTable(L, strings.Split(str, sep)))
	return 1
}

// trim(str) -> string
func (m *UtilModule) trim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

// starts_with(str, prefix) -> bool
func (m *UtilModule) startsWith(L *lua.LState) int {
	L.Push(lua.LBool(strings.HasPrefix(L.CheckString(1), L.CheckString(2))))
	return 1
}

// ends_with(str, suffix) -> bool
func (m *UtilModule) endsWith(L *lua.LState) int {
	L.Push(lua.LBool(strings.HasSuffix(L.CheckString(1), L.CheckString(2))))
	return 1
}

// join(tbl, sep) -> string
// Joins the array part of a table with a separator.
func (m *UtilModule) join(L *lua.LState) int {
	tbl := L.CheckTable(1)
	sep := L.OptString(2, "")

	parts := make([]string, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		value := tbl.RawGetInt(i)
		if str, ok := value.(lua.LString); ok {
			parts = append(parts, string(str))
		} else {
			parts = append(parts, value.String())
		}
	}

	L.Push(lua.LString(strings.Join(parts, sep)))
	return 1
}

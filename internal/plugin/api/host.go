package api

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/explainer/internal/plugin/lua"
)

// Lister reports the plugin identifiers the host knows about.
type Lister interface {
	List() []string
}

// HostModule implements the explainer.host API module.
type HostModule struct {
	lister  Lister
	logger  *log.Logger
	version string
}

// NewHostModule creates a host module. lister and logger may be nil.
func NewHostModule(lister Lister, logger *log.Logger, version string) *HostModule {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HostModule{
		lister:  lister,
		logger:  logger,
		version: version,
	}
}

// Name returns the module name.
func (m *HostModule) Name() string {
	return "host"
}

// Table builds the module table.
func (m *HostModule) Table(L *lua.LState) *lua.LTable {
	mod := L.NewTable()

	L.SetField(mod, "list", L.NewFunction(m.list))
	L.SetField(mod, "log", L.NewFunction(m.log))
	L.SetField(mod, "vlog", L.NewFunction(m.vlog))
	L.SetField(mod, "version", L.NewFunction(m.versionFn))

	return mod
}

// list() -> {identifiers}
func (m *HostModule) list(L *lua.LState) int {
	var names []string
	if m.lister != nil {
		names = m.lister.List()
	}
	L.Push(stringsTable(L, names))
	return 1
}

// log(fmt, ...) writes a message to the host log.
func (m *HostModule) log(L *lua.LState) int {
	m.logger.Print(format(L))
	return 0
}

// vlog(fmt, ...) writes a message only when verbose logging is enabled.
func (m *HostModule) vlog(L *lua.LState) int {
	m.logger.Debug(format(L))
	return 0
}

// version() -> string
func (m *HostModule) versionFn(L *lua.LState) int {
	L.Push(lua.LString(m.version))
	return 1
}

// format applies printf-style formatting when extra arguments are given.
func format(L *lua.LState) string {
	msg := L.CheckString(1)
	if L.GetTop() == 1 {
		return msg
	}
	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, plua.ToGoValue(L.Get(i)))
	}
	return fmt.Sprintf(msg, args...)
}

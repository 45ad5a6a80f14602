// Package lua provides the Lua runtime that plugins are imported into.
//
// A State wraps a single gopher-lua LState and owns the two pieces of global
// state every import touches:
//   - the module search path (package.path), kept as an ordered list of
//     directories with the most recently prepended directory first
//   - the module cache (package.loaded), populated by require
//
// All access to the underlying LState goes through the State mutex because
// gopher-lua is not goroutine-safe.
//
// # Search path
//
// Each search directory expands to three patterns:
//
//	<dir>/?.lua
//	<dir>/?/init.lua
//	<dir>/?/?.lua
//
// followed by the interpreter's default path (LUA_PATH or the built-in
// default). Prepending a directory that is already present moves it to the
// head instead of adding a duplicate.
//
//	state, err := lua.NewState(lua.WithSearchDirs("/opt/explainer/plugins"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer state.Close()
//
//	state.PrependSearchDir("/home/me/plugins")
//	mod, err := state.Require(ctx, "myplugin")
//
// No sandbox is installed: imported code gets the full standard library.
package lua

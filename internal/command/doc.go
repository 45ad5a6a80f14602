// Package command discovers user commands written as Lua scripts.
//
// A command named "greet" lives in a file cmd_greet.lua inside one of the
// registry's namespace directories. The script returns a table with a cli
// function (or defines a global cli):
//
//	local M = {}
//	M.short = "Say hello"
//
//	function M.cli(text)
//	  print("hello " .. (text or "world"))
//	end
//
//	return M
//
// Listing is name-based and never executes scripts. Get executes the script
// in a fresh Lua state; scripts that fail to load are reported through
// diagnostics instead of errors.
package command

// Package plugin imports Lua plugins and exposes the functions they export
// as entry points.
//
// # Identifiers
//
// A plugin is named either by a filesystem path or by a module name:
//
//	./plugins/wordcount       directory plugin (init.lua or wordcount.lua inside)
//	./plugins/wordcount.lua   single-file plugin
//	wordcount                 module found through the current search path
//	tools.wordcount           dotted module (tools/wordcount.lua)
//
// For a path identifier the parent directory is moved to the head of the
// search path before the module is required. The change persists, so later
// imports by module name can find siblings of an earlier path import.
//
// # Entry Points
//
// A module exports entry points through an entry_points table:
//
//	local M = {}
//
//	M.entry_points = {
//	  run = function(text) return "got: " .. (text or "") end,
//	  version = function() return "1.0.0" end,
//	}
//
//	return M
//
// Or through an optional manifest next to the module (plugin.json,
// plugin.yaml, or <name>.plugin.json / <name>.plugin.yaml):
//
//	{
//	  "name": "wordcount",
//	  "version": "1.0.0",
//	  "description": "Counts words",
//	  "entry_points": {
//	    "run": "wordcount:count",
//	    "stats": "wordcount.stats:summary"
//	  }
//	}
//
// Manifest entries take precedence over the module's entry_points field.
//
// # Invocation
//
// Entry points are called with no arguments when none are given. Otherwise
// the arguments are joined with single spaces and passed as one string, so
// Invoke(ctx, []string{"a", "b"}) and Invoke(ctx, []string{"a b"}) are
// indistinguishable to the plugin. Functions declaring more than one fixed
// parameter are rejected at load time.
//
// # Thread Safety
//
// Loads through one Loader are serialized. Entry point invocations share the
// Loader's Lua state and are serialized by it.
package plugin

// Package api provides the Lua modules the host exposes to plugins and
// command scripts.
//
// Modules are preloaded, so nothing runs until a script requires them:
//
//	local explainer = require("explainer")
//	explainer.host.vlog("known plugins: %s", explainer.util.join(explainer.host.list(), ", "))
//
//	local util = require("explainer.util")
//	local words = util.fields(text)
//
// Available modules:
//   - explainer.host: list, log, vlog, version
//   - explainer.util: fields, split, trim, starts_with, ends_with, join
package api

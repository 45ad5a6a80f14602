// Package config provides layered configuration for explainer.
//
// Sources are merged with later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  5. Command Line Flags      │  ← Highest priority (Set)
//	├─────────────────────────────┤
//	│  4. Environment Variables   │  ← EXPLAINER_*
//	├─────────────────────────────┤
//	│  3. Explicit File           │  ← --config
//	├─────────────────────────────┤
//	│  2. Project / User Files    │  ← .explainer/config.toml, ~/.config/explainer/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Files may be TOML or YAML; a malformed file fails Load with a
// loader.ParseError carrying the line of the problem.
//
// # Settings
//
//	[logging]
//	level = "info"          # debug, info, warn, error
//	verbose = false         # same as level = "debug"
//
//	[descriptor]
//	name = ""               # <name>.yaml looked up in the descriptor dirs
//	path = ""               # explicit descriptor file, overrides name
//
//	[plugins]
//	search_paths = ["./plugins"]
//	cache_size = 64
//
//	[commands]
//	search_paths = []
//
// # Environment
//
// EXPLAINER_LOG_LEVEL, EXPLAINER_VERBOSE, EXPLAINER_DESCRIPTOR,
// EXPLAINER_PLUGIN_PATHS, EXPLAINER_COMMAND_PATHS and EXPLAINER_CACHE_SIZE
// map to the settings above. Path lists use the OS list separator.
// Any other EXPLAINER_SECTION_KEY variable sets section.key.
package config

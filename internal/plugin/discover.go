package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	// Name is the module name the plugin can be imported under.
	Name string

	// Path is the plugin file or directory.
	Path string

	// Manifest is set when the plugin ships one.
	Manifest *Manifest

	// Error is set when the entry looks like a plugin but cannot be loaded.
	Error error
}

// Discover finds plugins in the given directories without executing them.
// Earlier directories win on name clashes. Missing directories are skipped.
// Returns plugins sorted by name.
func Discover(dirs ...string) []*PluginInfo {
	discovered := make(map[string]*PluginInfo)

	for _, dir := range dirs {
		discoverInPath(dir, discovered)
	}

	plugins := make([]*PluginInfo, 0, len(discovered))
	for _, info := range discovered {
		plugins = append(plugins, info)
	}

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	return plugins
}

// discoverInPath finds plugins in a single directory.
func discoverInPath(basePath string, discovered map[string]*PluginInfo) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var info *PluginInfo
		if entry.IsDir() {
			if !isListableName(name) {
				continue
			}
			info = inspectPlugin(name, filepath.Join(basePath, name))
		} else {
			module := strings.TrimSuffix(name, ".lua")
			if module == name || !isListableName(module) {
				continue
			}
			info = inspectFile(module, filepath.Join(basePath, name))
		}

		// Don't override earlier discoveries (first path wins)
		if _, exists := discovered[info.Name]; !exists {
			discovered[info.Name] = info
		}
	}
}

// isListableName reports whether a discovered file or directory name can be
// imported back by name. Names like "2dviz" still load through their path.
func isListableName(name string) bool {
	return pathModulePattern.MatchString(name) && moduleNamePattern.MatchString(name)
}

// inspectFile describes a single-file plugin.
func inspectFile(module, path string) *PluginInfo {
	info := &PluginInfo{Name: module, Path: path}
	info.Manifest, info.Error = FindManifest(path, module)
	return info
}

// inspectPlugin examines a plugin directory and returns its info.
func inspectPlugin(module, path string) *PluginInfo {
	info := &PluginInfo{Name: module, Path: path}

	for _, main := range []string{"init.lua", module + ".lua"} {
		source := filepath.Join(path, main)
		if stat, err := os.Stat(source); err == nil && !stat.IsDir() {
			info.Manifest, info.Error = FindManifest(source, module)
			return info
		}
	}

	info.Error = ErrNoModule
	return info
}

// Description returns the manifest description, or "" without a manifest.
func (p *PluginInfo) Description() string {
	if p.Manifest == nil {
		return ""
	}
	return p.Manifest.Description
}

package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin's metadata and the entry points it exports.
//
// A manifest is optional. When present, its entry_points table takes
// precedence over the entry_points field of the module's return value.
type Manifest struct {
	// Identity
	Name        string `json:"name" yaml:"name"`               // Display identifier (e.g., "word-count")
	Version     string `json:"version" yaml:"version"`         // Semver (e.g., "1.2.0")
	Description string `json:"description" yaml:"description"` // Short description
	Author      string `json:"author" yaml:"author"`           // Author name or org
	License     string `json:"license" yaml:"license"`         // SPDX license identifier
	Homepage    string `json:"homepage" yaml:"homepage"`       // URL to plugin homepage

	// EntryPoints maps an entry point name to "module:attr" or "attr".
	// A bare attr is looked up on the plugin's own module.
	EntryPoints map[string]string `json:"entry_points" yaml:"entry_points"`

	// Internal: path to the manifest file
	path string
}

// Validation errors.
var (
	ErrInvalidName       = errors.New("manifest: name must be alphanumeric with hyphens")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrEmptyEntryPoint   = errors.New("manifest: entry point name is required")
	ErrInvalidTarget     = errors.New("manifest: entry point target must be module:attr or attr")
	ErrUnknownFileFormat = errors.New("manifest: unsupported file extension")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// attrPattern validates the attribute part of an entry point target.
var attrPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// LoadManifest loads and validates a plugin manifest from a JSON or YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidManifest, path, err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidManifest, ErrUnknownFileFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidManifest, path, err)
	}

	m.path = path

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, path, err)
	}

	return &m, nil
}

// manifestCandidates returns the manifest files that may describe the module
// loaded from source, in lookup order.
func manifestCandidates(source, module string) []string {
	if source == "" || strings.HasPrefix(source, "preload:") {
		return nil
	}

	dir := filepath.Dir(source)
	leaf := module
	if i := strings.LastIndex(module, "."); i >= 0 {
		leaf = module[i+1:]
	}

	var candidates []string

	// Directory plugins: D/<leaf>/init.lua or D/<leaf>/<leaf>.lua
	if filepath.Base(dir) == leaf {
		for _, name := range []string{"plugin.json", "plugin.yaml", "plugin.yml"} {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		candidates = append(candidates, filepath.Join(dir, leaf+".plugin"+ext))
	}
	return candidates
}

// FindManifest locates and loads the manifest for a module file.
// Returns nil, nil if the module has no manifest.
func FindManifest(source, module string) (*Manifest, error) {
	for _, candidate := range manifestCandidates(source, module) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		return LoadManifest(candidate)
	}
	return nil, nil
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name != "" && !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version != "" && !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	for name, target := range m.EntryPoints {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyEntryPoint
		}
		if _, _, err := ParseTarget(target, "module"); err != nil {
			return fmt.Errorf("entry point %q: %w", name, err)
		}
	}

	return nil
}

// ParseTarget splits an entry point target into the module to require and the
// attribute path to read from it. A target without a colon refers to an
// attribute of defaultModule.
func ParseTarget(target, defaultModule string) (module, attr string, err error) {
	module, attr = defaultModule, target
	if i := strings.IndexByte(target, ':'); i >= 0 {
		module, attr = target[:i], target[i+1:]
		if !moduleNamePattern.MatchString(module) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
	}
	if !attrPattern.MatchString(attr) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return module, attr, nil
}

// EntryPointNames returns the declared entry point names, sorted.
func (m *Manifest) EntryPointNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.EntryPoints))
	for name := range m.EntryPoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the path to the manifest file.
func (m *Manifest) Path() string {
	return m.path
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	version := m.Version
	if version == "" {
		version = "0.0.0"
	}
	return fmt.Sprintf("%s v%s", m.Name, version)
}

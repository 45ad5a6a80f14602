package explainer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor errors.
var (
	// ErrDescriptorNotFound indicates no descriptor file matches the requested name.
	ErrDescriptorNotFound = errors.New("descriptor not found")

	// ErrInvalidDescriptor indicates a descriptor file could not be parsed or validated.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

// Descriptor lists the plugins an installation knows about.
type Descriptor struct {
	// Name identifies the descriptor.
	Name string `yaml:"name"`

	// SearchPaths are extra plugin directories, relative to the descriptor file.
	SearchPaths []string `yaml:"search_paths,omitempty"`

	// Plugins are the named resolution rules.
	Plugins []PluginRule `yaml:"plugins,omitempty"`

	path string
}

// PluginRule maps a plugin name to either a path or a module name.
type PluginRule struct {
	Name        string `yaml:"name"`
	Path        string `yaml:"path,omitempty"`
	Module      string `yaml:"module,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Target returns the identifier the rule resolves to.
func (r PluginRule) Target() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Module
}

// LoadDescriptor reads and validates a descriptor file. Relative paths in
// the descriptor are made relative to the file's directory.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDescriptorNotFound, path)
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	d.path = path
	d.rebase(filepath.Dir(path))
	return d, nil
}

// ParseDescriptor parses and validates descriptor YAML. Paths are left as written.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks that every rule has a unique name and exactly one target.
func (d *Descriptor) Validate() error {
	seen := make(map[string]bool, len(d.Plugins))
	for i, rule := range d.Plugins {
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("%w: plugins[%d]: name is required", ErrInvalidDescriptor, i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("%w: plugin %q declared twice", ErrInvalidDescriptor, rule.Name)
		}
		seen[rule.Name] = true

		if (rule.Path == "") == (rule.Module == "") {
			return fmt.Errorf("%w: plugin %q: exactly one of path or module is required", ErrInvalidDescriptor, rule.Name)
		}
	}
	return nil
}

// Rule returns the rule for name.
func (d *Descriptor) Rule(name string) (PluginRule, bool) {
	if d == nil {
		return PluginRule{}, false
	}
	for _, rule := range d.Plugins {
		if rule.Name == name {
			return rule, true
		}
	}
	return PluginRule{}, false
}

// Names returns the rule names in declaration order.
func (d *Descriptor) Names() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Plugins))
	for i, rule := range d.Plugins {
		names[i] = rule.Name
	}
	return names
}

// Path returns the file the descriptor was loaded from.
func (d *Descriptor) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// rebase makes relative search paths and rule paths relative to dir.
func (d *Descriptor) rebase(dir string) {
	for i, p := range d.SearchPaths {
		d.SearchPaths[i] = rebasePath(dir, p)
	}
	for i, rule := range d.Plugins {
		if rule.Path != "" {
			d.Plugins[i].Path = rebasePath(dir, rule.Path)
		}
	}
}

func rebasePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || p == "~" || strings.HasPrefix(p, "~/") {
		return p
	}
	joined := filepath.Join(dir, p)
	if filepath.IsAbs(joined) {
		return joined
	}
	// A bare relative name would otherwise read as a module identifier.
	return "." + string(filepath.Separator) + joined
}

// DefaultDescriptorDirs returns the directories searched for named descriptors.
func DefaultDescriptorDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, ".explainer", "descriptors"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "explainer", "descriptors"))
	}
	return dirs
}

// FindDescriptor returns the first <name>.yaml or <name>.yml found in dirs.
func FindDescriptor(name string, dirs ...string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: bad descriptor name %q", ErrInvalidDescriptor, name)
	}
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDescriptorNotFound, name)
}

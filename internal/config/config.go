package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/explainer/internal/config/loader"
)

// EnvPrefix is the prefix for configuration environment variables.
const EnvPrefix = "EXPLAINER_"

// Setting paths.
const (
	KeyLogLevel       = "logging.level"
	KeyVerbose        = "logging.verbose"
	KeyDescriptorName = "descriptor.name"
	KeyDescriptorPath = "descriptor.path"
	KeyPluginPaths    = "plugins.search_paths"
	KeyCacheSize      = "plugins.cache_size"
	KeyCommandPaths   = "commands.search_paths"
)

// validLogLevels are the accepted logging.level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Config provides access to the merged explainer configuration.
type Config struct {
	mu sync.RWMutex

	// merged holds every source applied so far
	merged map[string]any

	// sources lists the files that contributed, in load order
	sources []string

	// Configuration paths
	userConfigDir    string
	projectConfigDir string
	file             string

	fs        loader.FileSystem
	envPrefix string
}

// Option configures a Config instance.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithProjectConfigDir sets the project configuration directory.
func WithProjectConfigDir(dir string) Option {
	return func(c *Config) {
		c.projectConfigDir = dir
	}
}

// WithFile sets an explicit configuration file. Unlike the user and project
// files it must exist.
func WithFile(path string) Option {
	return func(c *Config) {
		c.file = path
	}
}

// WithFS sets the file system used to read configuration files.
func WithFS(fsys loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fsys
	}
}

// WithEnvPrefix overrides the environment variable prefix. An empty prefix
// disables environment loading.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// New creates a Config holding only the built-in defaults.
func New(opts ...Option) *Config {
	c := &Config{
		merged:    defaultConfig(),
		fs:        loader.DefaultFS(),
		envPrefix: EnvPrefix,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userConfigDir == "" {
		c.userConfigDir = DefaultUserConfigDir()
	}

	return c
}

// Load applies the file and environment layers on top of the defaults.
func (c *Config) Load(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := defaultConfig()
	var sources []string

	for _, dir := range []string{c.userConfigDir, c.projectConfigDir} {
		if dir == "" {
			continue
		}
		data, path, err := c.loadFirst(dir)
		if err != nil {
			return err
		}
		if data != nil {
			merged = loader.DeepMerge(merged, data)
			sources = append(sources, path)
		}
	}

	if c.file != "" {
		if _, err := c.fs.Stat(c.file); err != nil {
			return fmt.Errorf("%w: %s", ErrFileNotFound, c.file)
		}
		data, err := c.loadFile(c.file)
		if err != nil {
			return err
		}
		merged = loader.DeepMerge(merged, data)
		sources = append(sources, c.file)
	}

	if c.envPrefix != "" {
		env := loader.NewEnvLoaderWithMapping(c.envPrefix, envMapping(c.envPrefix))
		data, err := env.Load()
		if err != nil {
			return fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, data)
	}

	c.merged = merged
	c.sources = sources
	return nil
}

// loadFirst loads the first config.{toml,yaml,yml} present in dir.
func (c *Config) loadFirst(dir string) (map[string]any, string, error) {
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := c.fs.Stat(path); err != nil {
			continue
		}
		data, err := c.loadFile(path)
		if err != nil {
			return nil, "", err
		}
		return data, path, nil
	}
	return nil, "", nil
}

// loadFile reads one configuration file.
func (c *Config) loadFile(path string) (map[string]any, error) {
	return loader.ForPath(c.fs, path).LoadFrom(path)
}

// envMapping maps the well-known variables for prefix to setting paths.
func envMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":     KeyLogLevel,
		prefix + "VERBOSE":       KeyVerbose,
		prefix + "DESCRIPTOR":    KeyDescriptorName,
		prefix + "PLUGIN_PATHS":  KeyPluginPaths,
		prefix + "COMMAND_PATHS": KeyCommandPaths,
		prefix + "CACHE_SIZE":    KeyCacheSize,
	}
}

// Sources returns the configuration files that were loaded, lowest priority first.
func (c *Config) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.sources...)
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return getPath(c.merged, path)
}

// Set overrides a value, typically from a command line flag.
func (c *Config) Set(path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return setPath(c.merged, path, value)
}

// Merged returns a copy of the merged configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.Clone(c.merged)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case uint64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value at the given path. The integers 0 and 1
// are accepted so EXPLAINER_VERBOSE=1 works.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		if val == 0 || val == 1 {
			return val == 1, nil
		}
	case int:
		if val == 0 || val == 1 {
			return val == 1, nil
		}
	}
	return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
}

// GetStringSlice returns a string slice at the given path. A single string
// is split on the OS path list separator, so environment variables can carry
// lists.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}

	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return filepath.SplitList(val), nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// LogLevel returns the effective log level. Verbose forces debug.
func (c *Config) LogLevel() string {
	if verbose, _ := c.GetBool(KeyVerbose); verbose {
		return "debug"
	}
	level, err := c.GetString(KeyLogLevel)
	if err != nil || level == "" {
		return "info"
	}
	return strings.ToLower(level)
}

// Verbose reports whether verbose logging is enabled.
func (c *Config) Verbose() bool {
	verbose, _ := c.GetBool(KeyVerbose)
	return verbose
}

// DescriptorName returns the descriptor name to look up.
func (c *Config) DescriptorName() string {
	name, _ := c.GetString(KeyDescriptorName)
	return name
}

// DescriptorPath returns the explicit descriptor file, if any.
func (c *Config) DescriptorPath() string {
	path, _ := c.GetString(KeyDescriptorPath)
	return expandPath(path)
}

// PluginPaths returns the plugin search directories with ~ and $VARS expanded.
func (c *Config) PluginPaths() []string {
	paths, _ := c.GetStringSlice(KeyPluginPaths)
	return expandPaths(paths)
}

// CommandPaths returns the command namespace directories.
func (c *Config) CommandPaths() []string {
	paths, _ := c.GetStringSlice(KeyCommandPaths)
	return expandPaths(paths)
}

// CacheSize returns the number of loaded plugin specs kept in memory.
func (c *Config) CacheSize() int {
	size, err := c.GetInt(KeyCacheSize)
	if err != nil {
		return DefaultCacheSize
	}
	return size
}

// UserConfigDir returns the user configuration directory.
func (c *Config) UserConfigDir() string {
	return c.userConfigDir
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	level, err := c.GetString(KeyLogLevel)
	if err != nil {
		return err
	}
	if !validLogLevels[strings.ToLower(level)] {
		return &ValidationError{Path: KeyLogLevel, Message: "must be one of debug, info, warn, error", Value: level}
	}

	if _, err := c.GetBool(KeyVerbose); err != nil {
		return err
	}

	size, err := c.GetInt(KeyCacheSize)
	if err != nil {
		return err
	}
	if size < 1 {
		return &ValidationError{Path: KeyCacheSize, Message: "must be at least 1", Value: size}
	}

	for _, key := range []string{KeyPluginPaths, KeyCommandPaths} {
		if _, err := c.GetStringSlice(key); err != nil {
			return err
		}
	}

	return nil
}

// DefaultCacheSize is the default number of cached plugin specs.
const DefaultCacheSize = 64

// DefaultUserConfigDir returns the default user configuration directory.
func DefaultUserConfigDir() string {
	if xdg := loader.GetEnvOrDefault("XDG_CONFIG_HOME", ""); xdg != "" {
		return filepath.Join(xdg, "explainer")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "explainer")
}

// defaultConfig returns the default configuration values.
func defaultConfig() map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":   "info",
			"verbose": false,
		},
		"descriptor": map[string]any{
			"name": "",
			"path": "",
		},
		"plugins": map[string]any{
			"search_paths": []any{},
			"cache_size":   int64(DefaultCacheSize),
		},
		"commands": map[string]any{
			"search_paths": []any{},
		},
	}
}

// expandPath expands $VARS and a leading ~.
func expandPath(p string) string {
	if p == "" {
		return ""
	}
	p = loader.ExpandEnvInString(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func expandPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = expandPath(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}

	current := any(m)
	for _, part := range parts {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = cm[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// setPath sets a value in a nested map using a dot-separated path.
func setPath(m map[string]any, path string, value any) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ErrInvalidPath
	}

	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		next, ok := current[part]
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		nextMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is not a section", ErrInvalidPath, strings.Join(parts[:i+1], "."))
		}
		current = nextMap
	}

	current[parts[len(parts)-1]] = value
	return nil
}

// splitPath splits a dot-separated path into non-empty parts.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, ".") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

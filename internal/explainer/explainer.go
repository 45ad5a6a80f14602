package explainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/explainer/internal/plugin"
	"github.com/dshills/explainer/internal/plugin/api"
)

// DefaultCacheSize is the number of loaded specs kept when no size is given.
const DefaultCacheSize = 64

// ErrClosed is returned by ImportFrom after Close.
var ErrClosed = errors.New("explainer closed")

// Explainer resolves plugin identifiers through a descriptor and loads them.
type Explainer struct {
	mu sync.Mutex

	descriptor  *Descriptor
	searchPaths []string
	loader      *plugin.Loader
	modules     *api.Registry
	cache       *lru.Cache[string, *plugin.ModuleSpec]
	log         *log.Logger
	closed      bool

	// Construction options
	descriptorName string
	descriptorPath string
	descriptorDirs []string
	cacheSize      int
	version        string
	loaderOpts     []plugin.LoaderOption
}

// Option configures an Explainer.
type Option func(*Explainer)

// WithDescriptor uses an already parsed descriptor.
func WithDescriptor(d *Descriptor) Option {
	return func(e *Explainer) {
		e.descriptor = d
	}
}

// WithDescriptorName selects a descriptor by name from the descriptor dirs.
func WithDescriptorName(name string) Option {
	return func(e *Explainer) {
		e.descriptorName = name
	}
}

// WithDescriptorPath loads the descriptor from an explicit file.
func WithDescriptorPath(path string) Option {
	return func(e *Explainer) {
		e.descriptorPath = path
	}
}

// WithDescriptorDirs overrides the directories searched for named descriptors.
func WithDescriptorDirs(dirs ...string) Option {
	return func(e *Explainer) {
		e.descriptorDirs = dirs
	}
}

// WithSearchPaths adds plugin directories, ahead of the descriptor's own.
func WithSearchPaths(paths ...string) Option {
	return func(e *Explainer) {
		e.searchPaths = append(e.searchPaths, paths...)
	}
}

// WithLogger sets the logger shared with the loader and host API.
func WithLogger(logger *log.Logger) Option {
	return func(e *Explainer) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithCacheSize sets how many loaded specs are kept for Loaded.
func WithCacheSize(size int) Option {
	return func(e *Explainer) {
		e.cacheSize = size
	}
}

// WithVersion sets the version reported to plugins.
func WithVersion(version string) Option {
	return func(e *Explainer) {
		e.version = version
	}
}

// WithLoaderOptions passes extra options to the plugin loader.
func WithLoaderOptions(opts ...plugin.LoaderOption) Option {
	return func(e *Explainer) {
		e.loaderOpts = append(e.loaderOpts, opts...)
	}
}

// New creates an Explainer. An explicit descriptor path wins over a name;
// with neither, the Explainer only knows discovered plugins.
func New(opts ...Option) (*Explainer, error) {
	e := &Explainer{
		log:       log.New(io.Discard),
		cacheSize: DefaultCacheSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.loadDescriptor(); err != nil {
		return nil, err
	}
	if e.descriptor != nil {
		e.searchPaths = append(e.searchPaths, e.descriptor.SearchPaths...)
	}

	if e.cacheSize < 1 {
		return nil, fmt.Errorf("cache size must be positive, got %d", e.cacheSize)
	}
	cache, err := lru.New[string, *plugin.ModuleSpec](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create spec cache: %w", err)
	}
	e.cache = cache

	modules, err := api.NewRegistry(
		api.NewHostModule(e, e.log, e.version),
		api.NewUtilModule(),
	)
	if err != nil {
		return nil, err
	}
	e.modules = modules

	loaderOpts := []plugin.LoaderOption{
		plugin.WithSearchPaths(e.searchPaths...),
		plugin.WithModules(modules),
		plugin.WithLogger(e.log),
	}
	loader, err := plugin.NewLoader(append(loaderOpts, e.loaderOpts...)...)
	if err != nil {
		return nil, err
	}
	e.loader = loader

	return e, nil
}

func (e *Explainer) loadDescriptor() error {
	if e.descriptor != nil {
		return nil
	}

	path := e.descriptorPath
	if path == "" && e.descriptorName != "" {
		dirs := e.descriptorDirs
		if dirs == nil {
			dirs = DefaultDescriptorDirs()
		}
		found, err := FindDescriptor(e.descriptorName, dirs...)
		if err != nil {
			return err
		}
		path = found
	}
	if path == "" {
		return nil
	}

	d, err := LoadDescriptor(path)
	if err != nil {
		return err
	}
	e.descriptor = d
	e.log.Debug("descriptor loaded", "name", d.Name, "path", path, "plugins", len(d.Plugins))
	return nil
}

// List returns the sorted identifiers of every known plugin: descriptor
// names plus plugins discovered in the search paths. It does not load
// anything.
func (e *Explainer) List() []string {
	seen := make(map[string]bool)
	for _, name := range e.descriptor.Names() {
		seen[name] = true
	}
	for _, info := range plugin.Discover(e.searchPaths...) {
		if info.Error == nil {
			seen[info.Name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line description for a listed identifier, if one
// is available without loading the plugin.
func (e *Explainer) Describe(identifier string) string {
	if rule, ok := e.descriptor.Rule(identifier); ok && rule.Description != "" {
		return rule.Description
	}
	for _, info := range plugin.Discover(e.searchPaths...) {
		if info.Name == identifier {
			return info.Description()
		}
	}
	return ""
}

// ImportFrom loads the plugin named by identifier. A descriptor rule with
// that name supplies the path or module to load; any other identifier is
// passed to the loader unchanged. The spec is cached under identifier,
// replacing an earlier load.
func (e *Explainer) ImportFrom(ctx context.Context, identifier string) (*plugin.ModuleSpec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	target := identifier
	if rule, ok := e.descriptor.Rule(identifier); ok {
		target = rule.Target()
		e.log.Debug("descriptor rule", "plugin", identifier, "target", target)
	}

	spec, err := e.loader.Load(ctx, target)
	if err != nil {
		return nil, err
	}

	e.cache.Add(identifier, spec)
	e.log.Debug("plugin imported", "plugin", identifier, "module", spec.Module,
		"entry_points", spec.EntryPoints().Len(), "load_id", spec.LoadID)
	return spec, nil
}

// Loaded returns the most recent cached spec for identifier.
func (e *Explainer) Loaded(identifier string) (*plugin.ModuleSpec, bool) {
	return e.cache.Get(identifier)
}

// Modules returns the host API modules installed into plugin runtimes, so
// other runtimes (such as command scripts) can share them.
func (e *Explainer) Modules() *api.Registry {
	return e.modules
}

// Descriptor returns the active descriptor, or nil.
func (e *Explainer) Descriptor() *Descriptor {
	return e.descriptor
}

// SearchPaths returns the configured plugin directories.
func (e *Explainer) SearchPaths() []string {
	return append([]string(nil), e.searchPaths...)
}

// SearchPath returns the runtime search directories, most recent first.
func (e *Explainer) SearchPath() []string {
	return e.loader.SearchPath()
}

// Close releases the plugin runtime. Cached specs become unusable.
func (e *Explainer) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.cache.Purge()
	return e.loader.Close()
}

// Package cli implements the explainer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dshills/explainer/internal/command"
	"github.com/dshills/explainer/internal/config"
	"github.com/dshills/explainer/internal/explainer"
	"github.com/dshills/explainer/internal/logging"
	"github.com/dshills/explainer/internal/plugin"
)

// App holds the state shared by every command of one CLI invocation.
type App struct {
	stdout io.Writer
	stderr io.Writer

	version       string
	configOpts    []config.Option
	explainerOpts []explainer.Option

	// Global flags
	cfgFile    string
	descriptor string
	verbose    bool

	// Built by setup
	cfg      *config.Config
	logger   *log.Logger
	ex       *explainer.Explainer
	commands *command.Registry
}

// Option configures an App.
type Option func(*App)

// WithOutput sets the writers for normal output and logs.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithConfigOptions adds options used whenever configuration is loaded.
func WithConfigOptions(opts ...config.Option) Option {
	return func(a *App) {
		a.configOpts = append(a.configOpts, opts...)
	}
}

// WithExplainerOptions adds options passed to the explainer facade.
func WithExplainerOptions(opts ...explainer.Option) Option {
	return func(a *App) {
		a.explainerOpts = append(a.explainerOpts, opts...)
	}
}

// WithVersion sets the version reported by --version and to plugins.
func WithVersion(version string) Option {
	return func(a *App) {
		a.version = version
	}
}

// New creates an App writing to the process's stdout and stderr.
func New(opts ...Option) *App {
	a := &App{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		version: versionString(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// loadConfig loads configuration with file as the explicit config file.
func (a *App) loadConfig(ctx context.Context, file string) (*config.Config, error) {
	opts := []config.Option{config.WithFile(file)}
	if cwd, err := os.Getwd(); err == nil {
		opts = append(opts, config.WithProjectConfigDir(filepath.Join(cwd, ".explainer")))
	}

	cfg := config.New(append(opts, a.configOpts...)...)
	if err := cfg.Load(ctx); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setup loads configuration and builds the facade and command registry.
// It runs once per invocation; later calls are no-ops.
func (a *App) setup(ctx context.Context) error {
	if a.ex != nil {
		return nil
	}

	cfg, err := a.loadConfig(ctx, a.cfgFile)
	if err != nil {
		return err
	}
	if a.descriptor != "" {
		if err := cfg.Set(config.KeyDescriptorName, a.descriptor); err != nil {
			return err
		}
	}
	if a.verbose {
		if err := cfg.Set(config.KeyVerbose, true); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(a.stderr, cfg.LogLevel(), cfg.Verbose())
	if err != nil {
		return err
	}
	logger.Debug("config loaded", "sources", cfg.Sources())

	opts := []explainer.Option{
		explainer.WithLogger(logger),
		explainer.WithSearchPaths(pluginPaths(cfg)...),
		explainer.WithCacheSize(cfg.CacheSize()),
		explainer.WithVersion(a.version),
		explainer.WithDescriptorPath(cfg.DescriptorPath()),
		explainer.WithDescriptorName(cfg.DescriptorName()),
	}
	ex, err := explainer.New(append(opts, a.explainerOpts...)...)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.ex = ex
	a.commands = command.New(
		command.WithNamespaces(commandPaths(cfg)...),
		command.WithModules(ex.Modules()),
		command.WithLogger(logger),
	)
	return nil
}

// Close releases the plugin runtime.
func (a *App) Close() error {
	if a.ex == nil {
		return nil
	}
	err := a.ex.Close()
	a.ex = nil
	return err
}

func pluginPaths(cfg *config.Config) []string {
	if paths := cfg.PluginPaths(); len(paths) > 0 {
		return paths
	}
	return plugin.DefaultPluginPaths()
}

func commandPaths(cfg *config.Config) []string {
	if paths := cfg.CommandPaths(); len(paths) > 0 {
		return paths
	}
	return command.DefaultNamespaces()
}

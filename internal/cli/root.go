package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Execute runs the CLI with args and returns the first error.
func Execute(ctx context.Context, args []string, opts ...Option) error {
	app := New(opts...)
	defer func() { _ = app.Close() }()

	root := app.Command(args)
	root.SetArgs(args)

	return fang.Execute(
		ctx,
		root,
		fang.WithVersion(app.version),
		fang.WithNotifySignal(os.Interrupt),
	)
}

// Command builds the root command. args are the raw command line arguments,
// consulted only to find the --config file before flags are parsed so user
// commands can be registered as subcommands.
func (a *App) Command(args []string) *cobra.Command {
	root := &cobra.Command{
		Use:   "explainer",
		Short: "Load and run explainer plugins",
		Long: TitleStyle.Render("explainer") + SubtitleStyle.Render(" - Load and run explainer plugins") + `

Plugins are Lua modules that export entry points. A plugin is named by a
path (./plugins/shap, ~/lime.lua) or by a module name found in the plugin
search paths or the active descriptor.

` + SubtitleStyle.Render("Examples:") + `
  explainer list                               List known plugins
  explainer import ./plugins/shap              Show a plugin's entry points
  explainer import ./plugins/shap run a b      Run an entry point with "a b"
  explainer commands                           List user commands`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/explainer/config.toml)")
	flags.StringVar(&a.descriptor, "descriptor", "", "name of the plugin descriptor to use")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		a.newImportCommand(),
		a.newListCommand(),
		a.newCommandsCommand(),
		newCompletionCommand(),
	)
	a.addUserCommands(root, configFlag(args))

	return root
}

// configFlag returns the value of --config in args without parsing the rest.
func configFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

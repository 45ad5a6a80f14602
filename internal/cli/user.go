package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/explainer/internal/command"
)

// reservedNames are subcommands cobra or fang add on their own.
var reservedNames = map[string]bool{
	"help":       true,
	"man":        true,
	"__complete": true,
}

// addUserCommands registers every command script as a subcommand unless it
// would shadow a built-in. The command list comes from configuration loaded
// before flag parsing; failures leave the root without user commands.
func (a *App) addUserCommands(root *cobra.Command, cfgFile string) {
	cfg, err := a.loadConfig(context.Background(), cfgFile)
	if err != nil {
		return
	}

	builtins := make(map[string]bool)
	for _, c := range root.Commands() {
		builtins[c.Name()] = true
	}

	reg := command.New(command.WithNamespaces(commandPaths(cfg)...))
	for _, name := range reg.List() {
		if builtins[name] || reservedNames[name] {
			continue
		}
		root.AddCommand(a.newUserCommand(name))
	}
}

func (a *App) newUserCommand(name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [args...]",
		Short: "User command (cmd_" + name + ".lua)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c := a.commands.Get(ctx, name)
			if c == nil {
				return fmt.Errorf("command %q is unavailable: %s", name, a.lastDiagnostic(name))
			}
			defer func() { _ = c.Close() }()

			a.logger.Debug("running command", "command", name, "path", c.Path, "args", len(args))
			result, err := c.Run(ctx, args)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	// Root flags go before the command name; everything after it is the script's.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *App) lastDiagnostic(name string) string {
	diags := a.commands.Diagnostics()
	for i := len(diags) - 1; i >= 0; i-- {
		if diags[i].Command == name {
			return diags[i].Message
		}
	}
	return "not found"
}

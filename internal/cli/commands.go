package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newCommandsCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List user commands",
		Long: `List the user commands found in the command search paths.

With --check every command script is loaded and broken ones are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range a.commands.List() {
				fmt.Fprintln(out, NameStyle.Render(name))
			}
			if !check {
				return nil
			}
			for _, d := range a.commands.Check(cmd.Context()) {
				fmt.Fprintln(out, WarningStyle.Render(string(d.Severity)+": ")+d.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "load every command and report broken ones")
	return cmd
}

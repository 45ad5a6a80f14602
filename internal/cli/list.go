package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *App) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known plugins",
		Long: `List the plugins named by the active descriptor and found in the plugin
search paths. Plugins are not loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range a.ex.List() {
				if desc := a.ex.Describe(name); desc != "" {
					fmt.Fprintf(out, "%s  %s\n", NameStyle.Render(name), SubtitleStyle.Render(desc))
					continue
				}
				fmt.Fprintln(out, NameStyle.Render(name))
			}
			return nil
		},
	}
}

package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCommand creates the `explainer completion` command.
func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for explainer.

` + SubtitleStyle.Render("Bash:") + `
  eval "$(explainer completion bash)"

` + SubtitleStyle.Render("Zsh:") + `
  eval "$(explainer completion zsh)"

` + SubtitleStyle.Render("Fish:") + `
  explainer completion fish > ~/.config/fish/completions/explainer.fish

` + SubtitleStyle.Render("PowerShell:") + `
  explainer completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Completion scripts need no plugin runtime.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

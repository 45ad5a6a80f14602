package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/explainer/internal/plugin"
)

func (a *App) newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <path> [entry_point] [args...]",
		Short: "Load a plugin and run one of its entry points",
		Long: `Load a plugin and run one of its entry points.

Without an entry point the plugin's entry points are listed. Arguments after
the entry point are joined with single spaces and passed as one string; with
no arguments the entry point is called with none.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: a.completePlugins,
		RunE:              a.runImport,
	}
	// Everything after the plugin belongs to the entry point.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *App) runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec, err := a.ex.ImportFrom(ctx, args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 {
		printEntryPoints(cmd.OutOrStdout(), spec)
		return nil
	}

	name := args[1]
	ep, ok := spec.Lookup(name)
	if !ok {
		available := "none"
		if names := spec.EntryPoints().Names(); len(names) > 0 {
			available = strings.Join(names, ", ")
		}
		return fmt.Errorf("%w: %q not found in %s (available: %s)",
			plugin.ErrInvalidEntryPoint, name, args[0], available)
	}

	a.logger.Debug("invoking entry point", "plugin", args[0], "entry_point", name, "args", len(args)-2)
	result, err := ep.Invoke(ctx, args[2:])
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result)
}

// completePlugins completes the plugin argument from the known identifiers.
func (a *App) completePlugins(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := a.setup(cmd.Context()); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var matches []string
	for _, name := range a.ex.List() {
		if strings.HasPrefix(name, toComplete) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		// Fall back to file completion for path identifiers.
		return nil, cobra.ShellCompDirectiveDefault
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

func printEntryPoints(w io.Writer, spec *plugin.ModuleSpec) {
	fmt.Fprintln(w, TitleStyle.Render(spec.Module)+SubtitleStyle.Render(" entry points"))

	table := spec.EntryPoints()
	if table.Len() == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("  (none)"))
		return
	}

	width := 0
	for _, name := range table.Names() {
		width = max(width, len(name))
	}
	for _, ep := range table.Entries() {
		name := fmt.Sprintf("%-*s", width, ep.Name())
		fmt.Fprintf(w, "  %s  %s\n", NameStyle.Render(name),
			SubtitleStyle.Render(ep.Convention().String()+"  "+ep.Target()))
	}
}

// printResult writes an entry point's return value. Tables are rendered as YAML.
func printResult(w io.Writer, result any) error {
	switch v := result.(type) {
	case nil:
		return nil
	case []any, map[string]any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("render result: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

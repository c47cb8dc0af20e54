package cli

import (
	"fmt"
	"strings"

	"github.com/aryankumar/fanout/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command for generating shell completions
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for fanout.

Besides commands and flags, the script completes --clusters with the
contexts of the active kubeconfig (honoring --kubeconfig and KUBECONFIG)
and --output with the supported formats. Load it in the current shell:

  bash:        source <(fanout completion bash)
  zsh:         source <(fanout completion zsh)
  fish:        fanout completion fish | source
  powershell:  fanout completion powershell | Out-String | Invoke-Expression

To keep completions across sessions, write the script to your shell's
completion directory instead, for example:

  fanout completion bash > /etc/bash_completion.d/fanout
  fanout completion zsh > "${fpath[1]}/_fanout"
  fanout completion fish > ~/.config/fish/completions/fanout.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Skip the root's config loading and executor setup
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, args[0])
		},
	}

	return cmd
}

// runCompletion generates the completion script for the specified shell
func runCompletion(cmd *cobra.Command, shell string) error {
	w := cmd.OutOrStdout()

	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletion(w)
	case "zsh":
		return cmd.Root().GenZshCompletion(w)
	case "fish":
		return cmd.Root().GenFishCompletion(w, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell type %q", shell)
	}
}

// registerFlagCompletions wires dynamic completions for the root's persistent flags
func (a *app) registerFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("clusters", a.completeContexts)
	_ = cmd.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions([]string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp))
}

// completeContexts suggests kubeconfig contexts for the comma-separated
// --clusters value, skipping the ones already listed
func (a *app) completeContexts(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	contexts, err := config.NewKubeconfigLoader(a.kubeconfig).Contexts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	prefix, partial := "", toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix, partial = toComplete[:i+1], toComplete[i+1:]
	}
	chosen := strings.Split(prefix, ",")

	return lo.FilterMap(contexts, func(name string, _ int) (string, bool) {
		return prefix + name, strings.HasPrefix(name, partial) && !lo.Contains(chosen, name)
	}), cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

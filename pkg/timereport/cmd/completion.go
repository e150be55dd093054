package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var completionShells = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error {
		return root.GenBashCompletionV2(w, true)
	},
	"zsh": func(root *cobra.Command, w io.Writer) error {
		return root.GenZshCompletion(w)
	},
	"fish": func(root *cobra.Command, w io.Writer) error {
		return root.GenFishCompletion(w, true)
	},
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion for timereport",
		Long: `Print a completion script for the timereport binary.

Load it in the current shell, for example:

  source <(timereport completion bash)
  timereport completion fish | source`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			generate, ok := completionShells[args[0]]
			if !ok {
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
			return generate(cmd.Root(), rt.Writer())
		},
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// supportedShells lists the shells completion scripts can be generated for.
var supportedShells = []string{"bash", "zsh", "fish", "powershell"}

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Generate shell completion code for the specified shell",
	Long: `To load completions:

Bash:

  $ source <(chainfixture completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ chainfixture completion bash > /etc/bash_completion.d/chainfixture
  # macOS:
  $ chainfixture completion bash > $(brew --prefix)/etc/bash_completion.d/chainfixture

Zsh:

  $ chainfixture completion zsh > "${fpath[1]}/_chainfixture"

Fish:

  $ chainfixture completion fish > ~/.config/fish/completions/chainfixture.fish`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: supportedShells,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			return fmt.Errorf("unsupported shell %q (options: %v)", args[0], supportedShells)
		}
	},
}

func init() {
	// Replace cobra's default completion command with ours
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

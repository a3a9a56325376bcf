package cli

import (
	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for cswallet.

Bash:
  $ source <(cswallet completion bash)

Zsh:
  $ cswallet completion zsh > "${fpath[1]}/_cswallet"

Fish:
  $ cswallet completion fish > ~/.config/fish/completions/cswallet.fish

PowerShell:
  PS> cswallet completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

func completeFeeRates(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{servicefee.RateMinimum, servicefee.RateDefault, servicefee.RateFastest}, cobra.ShellCompDirectiveNoFileComp
}

func completeFixed(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// registerCompletions wires flag value completion once every command exists.
func registerCompletions() {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if cmd.Flags().Lookup("fee-rate") != nil {
			_ = cmd.RegisterFlagCompletionFunc("fee-rate", completeFeeRates)
		}
	})
	_ = rootCmd.RegisterFlagCompletionFunc("network", completeFixed("mainnet", "regtest"))
	_ = rootCmd.RegisterFlagCompletionFunc("chain", completeFixed("bitcoin", "litecoin", "dogecoin", "dash"))
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeFixed("text", "json", "auto"))
	_ = receiveCmd.RegisterFlagCompletionFunc("type", completeFixed("p2pkh", "p2sh", "p2wpkh"))
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(completionCmd)
}

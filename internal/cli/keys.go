package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	walletsvc "github.com/CoinSpace/cs-bitcoin-wallet/internal/service/wallet"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Export the private keys of funded addresses",
	Long: `Print the WIF private key of every address that currently holds coins.
Anyone with these keys can spend the funds.`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

type keysView struct {
	Keys []walletsvc.ExportedKey `json:"keys"`
}

func (v keysView) RenderText(w io.Writer) error {
	if len(v.Keys) == 0 {
		outln(w, "No funded addresses.")
		return nil
	}
	tbl := output.NewTable("ADDRESS", "PRIVATE KEY")
	for _, k := range v.Keys {
		tbl.AddRow(k.Address, k.WIF)
	}
	return tbl.Render(w)
}

func runKeys(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	var view keysView
	err = e.withSeed(func(seed []byte) error {
		keys, err := e.PrivateKeys(seed)
		view.Keys = keys
		return err
	})
	if err != nil {
		return err
	}
	if !formatter.IsJSON() {
		output.Warnf(os.Stderr, "keep these keys secret: they spend the wallet's funds")
	}
	return formatter.Print(view)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(keysCmd)
}

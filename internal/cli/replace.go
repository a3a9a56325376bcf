package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var replaceYes bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var replaceCmd = &cobra.Command{
	Use:   "replace <txid>",
	Short: "Speed up a pending payment by paying a higher fee",
	Long: `Replace a pending outgoing transaction (replace-by-fee). The payment is
rebuilt with the same recipients and a fee rate raised by the network's
replacement factor; the extra fee is taken from the change or from more
inputs.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplace,
}

type replaceView struct {
	Replaced string `json:"replaced"`
	TxID     string `json:"txid,omitempty"`
	ExtraFee string `json:"extra_fee"`
	Percent  string `json:"percent"`
	symbol   string
}

func (v replaceView) RenderText(w io.Writer) error {
	out(w, "Extra fee: %s %s (+%s%%)\n", v.ExtraFee, v.symbol, v.Percent)
	if v.TxID != "" {
		out(w, "Replaced %s\n", v.Replaced)
		out(w, "TxID: %s\n", v.TxID)
	}
	return nil
}

func runReplace(cmd *cobra.Command, args []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	tx, err := e.LoadTransaction(ctx, args[0])
	if err != nil {
		return err
	}
	est, err := e.EstimateReplacement(ctx, tx)
	if err != nil {
		return err
	}
	view := replaceView{
		Replaced: tx.ID,
		ExtraFee: chain.FormatAmount(est.Fee),
		Percent:  est.Percent.Shift(2).String(),
		symbol:   e.Network().Chain.Symbol(),
	}

	if !replaceYes {
		question := fmt.Sprintf("Pay %s %s more to speed up %s?", view.ExtraFee, view.symbol, tx.ID)
		if !promptConfirmFn(question) {
			return walleterr.WithSuggestion(walleterr.ErrInvalidInput, "replacement cancelled")
		}
	}

	err = e.withSeed(func(seed []byte) error {
		txID, err := e.CreateReplacementTransaction(ctx, tx, seed)
		if err != nil {
			return err
		}
		view.TxID = txID
		return nil
	})
	if err != nil {
		return err
	}
	return formatter.Print(view)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	replaceCmd.Flags().BoolVarP(&replaceYes, "yes", "y", false, "replace without asking for confirmation")
	rootCmd.AddCommand(replaceCmd)
}

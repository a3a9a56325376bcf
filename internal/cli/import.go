package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	importFeeRate string
	importYes     bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Sweep a private key into the wallet",
	Long: `Move every spendable output of a WIF private key to the wallet's next
receive address. The key is read without echo and never stored.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

type importView struct {
	TxID     string `json:"txid,omitempty"`
	Value    string `json:"value"`
	Fee      string `json:"fee"`
	Sendable string `json:"sendable"`
	FeeRate  string `json:"fee_rate"`
	symbol   string
}

func (v importView) RenderText(w io.Writer) error {
	out(w, "Found:    %s %s\n", v.Value, v.symbol)
	out(w, "Fee:      %s %s (%s)\n", v.Fee, v.symbol, v.FeeRate)
	out(w, "Received: %s %s\n", v.Sendable, v.symbol)
	if v.TxID != "" {
		out(w, "TxID:     %s\n", v.TxID)
	}
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	raw, err := promptPasswordFn("Enter private key (WIF): ")
	if err != nil {
		return err
	}
	defer wallet.Zero(raw)
	wif := strings.TrimSpace(string(raw))

	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	rate := importFeeRate
	if rate == "" {
		rate = cfg.Fees.Default
	}
	est, err := e.EstimateImport(ctx, wif, rate)
	if err != nil {
		return err
	}
	view := importView{
		Value:    chain.FormatAmount(est.Value),
		Fee:      chain.FormatAmount(est.Fee),
		Sendable: chain.FormatAmount(est.Sendable),
		FeeRate:  rate,
		symbol:   e.Network().Chain.Symbol(),
	}

	if !importYes {
		question := fmt.Sprintf("Move %s %s into the wallet for a fee of %s %s?",
			view.Sendable, view.symbol, view.Fee, view.symbol)
		if !promptConfirmFn(question) {
			return walleterr.WithSuggestion(walleterr.ErrInvalidInput, "import cancelled")
		}
	}

	if view.TxID, err = e.CreateImport(ctx, wif, rate); err != nil {
		return err
	}
	return formatter.Print(view)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	importCmd.Flags().StringVar(&importFeeRate, "fee-rate", "", "fee rate name (default from config)")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "import without asking for confirmation")
	rootCmd.AddCommand(importCmd)
}

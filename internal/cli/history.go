package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var historyCursor string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List wallet transactions, newest first",
	Long: `List one page of wallet transactions, pending ones first. Pass the
printed cursor with --cursor to see the next page.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

type historyView struct {
	Transactions []history.Transaction `json:"transactions"`
	HasMore      bool                  `json:"has_more"`
	Cursor       string                `json:"cursor,omitempty"`
}

func (v historyView) RenderText(w io.Writer) error {
	if len(v.Transactions) == 0 {
		outln(w, "No transactions.")
		return nil
	}
	tbl := output.NewTable("DATE", "TXID", "AMOUNT", "FEE", "CONF", "RBF").AlignRight(2, 3, 4)
	for _, tx := range v.Transactions {
		amount := int64(tx.Amount) //nolint:gosec // amounts stay below the coin supply
		if !tx.Incoming {
			amount = -amount
		}
		date := "pending"
		if !tx.Timestamp.IsZero() {
			date = tx.Timestamp.Local().Format("2006-01-02 15:04")
		}
		rbf := ""
		if tx.RBF {
			rbf = "yes"
		}
		tbl.AddRow(date, tx.ID, chain.FormatSignedAmount(amount), chain.FormatAmount(tx.Fee),
			strconv.FormatUint(uint64(tx.Confirmations), 10), rbf)
	}
	if err := tbl.Render(w); err != nil {
		return err
	}
	if v.HasMore {
		out(w, "\nMore: cswallet history --cursor %s\n", v.Cursor)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	page, err := e.LoadTransactions(ctx, historyCursor)
	if err != nil {
		return err
	}
	return formatter.Print(historyView{Transactions: page.Transactions, HasMore: page.HasMore, Cursor: page.Cursor})
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	historyCmd.Flags().StringVar(&historyCursor, "cursor", "", "txid printed by the previous page")
	rootCmd.AddCommand(historyCmd)
}

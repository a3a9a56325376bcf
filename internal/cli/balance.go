package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the wallet balance",
	Long: `Discover the wallet's used addresses and show the balance, split by
address type and confirmation status.`,
	Args: cobra.NoArgs,
	RunE: runBalance,
}

type balanceView struct {
	Wallet      string        `json:"wallet"`
	Symbol      string        `json:"symbol"`
	Balance     string        `json:"balance"`
	BalanceSat  uint64        `json:"balance_sat"`
	Pending     uint64        `json:"pending_sat"`
	MinConf     uint32        `json:"min_confirmations"`
	AddressType string        `json:"address_type"`
	ByType      []typeBalance `json:"by_type"`
}

type typeBalance struct {
	Type    btc.AddressType `json:"type"`
	Balance string          `json:"balance"`
	Outputs int             `json:"outputs"`
}

func (v balanceView) RenderText(w io.Writer) error {
	out(w, "Balance: %s %s\n", v.Balance, v.Symbol)
	if v.Pending > 0 {
		out(w, "Pending: %s %s (under %d confirmations)\n", chain.FormatAmount(v.Pending), v.Symbol, v.MinConf)
	}
	if len(v.ByType) == 0 {
		return nil
	}
	outln(w)
	tbl := output.NewTable("TYPE", "OUTPUTS", "BALANCE").AlignRight(1, 2)
	for _, b := range v.ByType {
		tbl.AddRow(b.Type.String(), strconv.Itoa(b.Outputs), b.Balance)
	}
	return tbl.Render(w)
}

// newBalanceView summarizes unspents.
func newBalanceView(name string, net *btc.Network, addressType btc.AddressType, unspents []btc.Unspent) balanceView {
	v := balanceView{
		Wallet:      name,
		Symbol:      net.Chain.Symbol(),
		MinConf:     net.MinConf,
		AddressType: addressType.String(),
	}
	sums := make(map[btc.AddressType]uint64)
	counts := make(map[btc.AddressType]int)
	for _, u := range unspents {
		v.BalanceSat += u.Value
		if u.Confirmations < net.MinConf {
			v.Pending += u.Value
		}
		sums[u.Type] += u.Value
		counts[u.Type]++
	}
	v.Balance = chain.FormatAmount(v.BalanceSat)
	for _, t := range net.AddressTypes {
		if counts[t] == 0 {
			continue
		}
		v.ByType = append(v.ByType, typeBalance{Type: t, Balance: chain.FormatAmount(sums[t]), Outputs: counts[t]})
	}
	return v
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	return formatter.Print(newBalanceView(e.record.Name, e.Network(), e.AddressType(), e.Unspents()))
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(balanceCmd)
}

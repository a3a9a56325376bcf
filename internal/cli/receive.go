package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	receiveType   string
	receiveAmount string
	receiveQR     bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Show the next unused receive address",
	Long: `Show the next unused receive address of the wallet's address type.

Use --type to show an address of another type and --qr to draw a payment
QR code on the terminal. Set wallet.address_type in the config to change
the type for every command.`,
	Args: cobra.NoArgs,
	RunE: runReceive,
}

type receiveView struct {
	Address string          `json:"address"`
	Type    btc.AddressType `json:"type"`
	URI     string          `json:"uri"`
}

func (v receiveView) RenderText(w io.Writer) error {
	out(w, "%s (%s)\n", v.Address, v.Type)
	return nil
}

func runReceive(cmd *cobra.Command, _ []string) error {
	var amount uint64
	if receiveAmount != "" {
		var err error
		if amount, err = chain.ParseAmount(receiveAmount); err != nil {
			return err
		}
	}

	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if receiveType != "" {
		t, err := btc.ParseAddressType(receiveType)
		if err != nil {
			return err
		}
		if err := e.SetAddressType(t); err != nil {
			return err
		}
	}

	address, err := e.Address()
	if err != nil {
		return err
	}
	view := receiveView{
		Address: address,
		Type:    e.AddressType(),
		URI:     output.PaymentURI(string(e.Network().Chain), address, amount),
	}
	if err := formatter.Print(view); err != nil {
		return err
	}
	if receiveQR && !formatter.IsJSON() {
		return output.RenderQR(formatter.Writer(), view.URI, output.DefaultQRConfig())
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	receiveCmd.Flags().StringVar(&receiveType, "type", "", "address type: p2pkh, p2sh, p2wpkh")
	receiveCmd.Flags().StringVar(&receiveAmount, "amount", "", "amount to request in the QR code")
	receiveCmd.Flags().BoolVar(&receiveQR, "qr", false, "draw the address as a QR code")
	rootCmd.AddCommand(receiveCmd)
}

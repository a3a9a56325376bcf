package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/output"
	walletsvc "github.com/CoinSpace/cs-bitcoin-wallet/internal/service/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// amountMax selects the largest spendable amount.
const amountMax = "max"

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	payTo          string
	payAmount      string
	payFeeRate     string
	payUnconfirmed bool
	payYes         bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send coins to an address",
		Long: `Build, sign and broadcast a payment. The service fee, if any, is added as
a second output and change returns to the wallet's next change address.

Example:
  cswallet send --to bc1q... --amount 0.01
  cswallet send --to bc1q... --amount max --fee-rate fastest`,
		Args: cobra.NoArgs,
		RunE: runSend,
	}

	feeCmd = &cobra.Command{
		Use:   "fee",
		Short: "Estimate the fee of a payment",
		Args:  cobra.NoArgs,
		RunE:  runFee,
	}

	maxCmd = &cobra.Command{
		Use:   "max",
		Short: "Show the largest amount that can be sent",
		Long: `Show the largest amount that can be sent to --to after the miner fee and
the service fee. Only confirmed outputs count unless --unconfirmed is set.`,
		Args: cobra.NoArgs,
		RunE: runMax,
	}

	psbtCmd = &cobra.Command{
		Use:   "psbt",
		Short: "Export an unsigned payment as a PSBT",
		Long: `Build a payment like send but print it as a base64 PSBT for an external
signer instead of signing it. Nothing is broadcast.`,
		Args: cobra.NoArgs,
		RunE: runPSBT,
	}
)

// paymentView describes a built or estimated payment.
type paymentView struct {
	TxID    string `json:"txid,omitempty"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Fee     string `json:"fee"`
	FeeRate string `json:"fee_rate"`
	URL     string `json:"url,omitempty"`
	PSBT    string `json:"psbt,omitempty"`
	symbol  string
}

func (p paymentView) RenderText(w io.Writer) error {
	if p.PSBT != "" {
		outln(w, p.PSBT)
		return nil
	}
	if p.TxID != "" {
		out(w, "Sent %s %s to %s\n", p.Amount, p.symbol, p.To)
		out(w, "Fee:  %s %s (%s)\n", p.Fee, p.symbol, p.FeeRate)
		out(w, "TxID: %s\n", p.TxID)
		if p.URL != "" {
			out(w, "URL:  %s\n", p.URL)
		}
		return nil
	}
	out(w, "Fee: %s %s (%s)\n", p.Fee, p.symbol, p.FeeRate)
	return nil
}

func addPaymentFlags(cmd *cobra.Command, withAmount bool) {
	cmd.Flags().StringVar(&payTo, "to", "", "destination address")
	_ = cmd.MarkFlagRequired("to")
	if withAmount {
		cmd.Flags().StringVar(&payAmount, "amount", "", `amount in coins, or "max"`)
		_ = cmd.MarkFlagRequired("amount")
	}
	cmd.Flags().StringVar(&payFeeRate, "fee-rate", "", "fee rate name: minimum, default, fastest (default from config)")
}

func feeRateName() string {
	if payFeeRate != "" {
		return strings.ToLower(payFeeRate)
	}
	return cfg.Fees.Default
}

// paymentRequest resolves the flags into a request; "max" asks the wallet
// for the largest confirmed amount.
func paymentRequest(ctx context.Context, e *engine) (walletsvc.SendRequest, error) {
	req := walletsvc.SendRequest{Address: strings.TrimSpace(payTo), FeeRate: feeRateName()}
	if err := e.ValidateAddress(req.Address); err != nil {
		return req, err
	}
	if strings.EqualFold(strings.TrimSpace(payAmount), amountMax) {
		maxAmount, err := e.EstimateMaxAmount(ctx, req.Address, req.FeeRate, false)
		if err != nil {
			return req, err
		}
		if maxAmount == 0 {
			return req, walleterr.SmallAmount(e.Network().DustThreshold)
		}
		req.Amount = maxAmount
		return req, nil
	}
	amount, err := chain.ParseAmount(payAmount)
	if err != nil {
		return req, walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"amount": payAmount})
	}
	req.Amount = amount
	return req, nil
}

func newPaymentView(e *engine, req walletsvc.SendRequest, fee uint64) paymentView {
	return paymentView{
		To:      req.Address,
		Amount:  chain.FormatAmount(req.Amount),
		Fee:     chain.FormatAmount(fee),
		FeeRate: req.FeeRate,
		symbol:  e.Network().Chain.Symbol(),
	}
}

func runSend(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := paymentRequest(ctx, e)
	if err != nil {
		return err
	}
	if err := e.ValidateAmount(ctx, req); err != nil {
		return err
	}
	fee, err := e.EstimateTransactionFee(ctx, req)
	if err != nil {
		return err
	}
	view := newPaymentView(e, req, fee)

	if !payYes {
		question := fmt.Sprintf("Send %s %s to %s with a fee of %s %s?",
			view.Amount, view.symbol, view.To, view.Fee, view.symbol)
		if !promptConfirmFn(question) {
			return walleterr.WithSuggestion(walleterr.ErrInvalidInput, "payment cancelled")
		}
	}

	err = e.withSeed(func(seed []byte) error {
		txID, err := e.CreateTransaction(ctx, req, seed)
		if err != nil {
			return err
		}
		view.TxID = txID
		return nil
	})
	if err != nil {
		return err
	}
	view.URL = txURL(e, view.TxID)
	return formatter.Print(view)
}

func txURL(e *engine, txID string) string {
	if e.Network().TxURL == "" {
		return ""
	}
	return fmt.Sprintf(e.Network().TxURL, txID)
}

func runFee(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := paymentRequest(ctx, e)
	if err != nil {
		return err
	}
	fee, err := e.EstimateTransactionFee(ctx, req)
	if err != nil {
		return err
	}
	return formatter.Print(newPaymentView(e, req, fee))
}

type maxView struct {
	To          string `json:"to"`
	Amount      string `json:"amount"`
	AmountSat   uint64 `json:"amount_sat"`
	FeeRate     string `json:"fee_rate"`
	Unconfirmed bool   `json:"unconfirmed"`
	symbol      string
}

func (m maxView) RenderText(w io.Writer) error {
	out(w, "Max: %s %s\n", m.Amount, m.symbol)
	return nil
}

func runMax(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	rate := feeRateName()
	amount, err := e.EstimateMaxAmount(ctx, payTo, rate, payUnconfirmed)
	if err != nil {
		return err
	}
	if amount == 0 && !formatter.IsJSON() {
		output.Warnf(os.Stderr, "nothing is spendable at the %s fee rate", rate)
	}
	return formatter.Print(maxView{
		To:          payTo,
		Amount:      chain.FormatAmount(amount),
		AmountSat:   amount,
		FeeRate:     rate,
		Unconfirmed: payUnconfirmed,
		symbol:      e.Network().Chain.Symbol(),
	})
}

func runPSBT(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, commandTimeout)
	defer cancel()

	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := paymentRequest(ctx, e)
	if err != nil {
		return err
	}
	if err := e.ValidateAmount(ctx, req); err != nil {
		return err
	}
	packet, fee, err := e.PreparePSBT(ctx, req)
	if err != nil {
		return err
	}
	view := newPaymentView(e, req, fee)
	view.PSBT = packet
	return formatter.Print(view)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	addPaymentFlags(sendCmd, true)
	sendCmd.Flags().BoolVarP(&payYes, "yes", "y", false, "send without asking for confirmation")
	addPaymentFlags(feeCmd, true)
	addPaymentFlags(maxCmd, false)
	maxCmd.Flags().BoolVar(&payUnconfirmed, "unconfirmed", false, "count unconfirmed outputs")
	addPaymentFlags(psbtCmd, true)

	rootCmd.AddCommand(sendCmd, feeCmd, maxCmd, psbtCmd)
}

package btc

import (
	"fmt"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// ReplaceRequest describes an unconfirmed transaction to fee-bump. The
// builder's candidates must list the original inputs first.
type ReplaceRequest struct {
	// Outputs of the original transaction; the first is the payment.
	Outputs []Unspent

	// Fee is the original total fee.
	Fee uint64

	// FeePerByte is the bumped rate.
	FeePerByte uint64

	// ChangeAddress receives the new change. When HadChange is set it is
	// the original change address and the change output must survive.
	ChangeAddress string
	HadChange     bool
}

// Replace rebuilds the payment of req at the bumped rate and returns the
// additional fee over the original.
func (b *TxBuilder) Replace(req ReplaceRequest) (uint64, error) {
	if len(req.Outputs) == 0 {
		return 0, walleterr.WithDetails(walleterr.ErrNotRBF, map[string]string{"reason": "no outputs"})
	}
	payment := req.Outputs[0]
	if err := b.addOutput(payment.Address, payment.Value, true); err != nil {
		return 0, err
	}

	var csFee uint64
	for _, o := range req.Outputs {
		if o.CSFee {
			csFee = o.Value
			if err := b.addOutput(o.Address, o.Value, true); err != nil {
				return 0, fmt.Errorf("service fee output: %w", err)
			}
			break
		}
	}

	changeType := TypeOf(req.ChangeAddress, b.net)
	b.vsize.AddOutputs(changeType, 1)

	var accum, fee uint64
	done := false
	for _, u := range b.unspents {
		if err := b.addInput(u); err != nil {
			return 0, err
		}
		accum += u.Value
		fee = b.vsize.Value()*req.FeePerByte + csFee
		if accum < payment.Value+fee {
			continue
		}

		change := accum - payment.Value - fee
		if change >= b.net.DustThreshold {
			if err := b.addOutput(req.ChangeAddress, change, false); err != nil {
				return 0, fmt.Errorf("change output: %w", err)
			}
			done = true
			break
		}
		if req.HadChange {
			// The original change output cannot be dropped.
			continue
		}
		b.vsize.AddOutputs(changeType, -1)
		fee = b.vsize.Value()*req.FeePerByte + csFee
		done = true
		break
	}
	if !done {
		return 0, walleterr.WithDetails(walleterr.ErrInsufficientFundsForReplacement, map[string]string{
			"available": fmt.Sprint(accum),
			"required":  fmt.Sprint(payment.Value + fee),
		})
	}

	if fee <= req.Fee {
		return 0, nil
	}
	return fee - req.Fee, nil
}

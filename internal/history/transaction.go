// Package history turns indexer transaction records into wallet-relative
// entries: direction, amount, fee, confirmation status and whether the
// transaction can still be fee-bumped.
package history

import (
	"time"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
)

// Status of a history entry.
type Status string

// Statuses.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Transaction is one wallet-relative history entry.
type Transaction struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	Incoming         bool      `json:"incoming"`
	Amount           uint64    `json:"amount"`
	Fee              uint64    `json:"fee"`
	Timestamp        time.Time `json:"timestamp"`
	Confirmations    uint32    `json:"confirmations"`
	MinConfirmations uint32    `json:"min_confirmations"`
	To               string    `json:"to,omitempty"`
	ChangeAddress    string    `json:"change_address,omitempty"`
	FeePerByte       uint64    `json:"fee_per_byte"`
	RBF              bool      `json:"rbf"`
	URL              string    `json:"url,omitempty"`

	// Inputs and Outputs are kept only for RBF-eligible entries so a
	// replacement can be rebuilt from them.
	Inputs  []btc.Unspent `json:"inputs,omitempty"`
	Outputs []btc.Unspent `json:"outputs,omitempty"`
}

// Pending reports whether the transaction has fewer than the required confirmations.
func (t *Transaction) Pending() bool {
	return t.Status == StatusPending
}

// HadChange reports whether the entry paid change back to the wallet.
func (t *Transaction) HadChange() bool {
	return t.ChangeAddress != ""
}

// ReplaceRequest returns the builder request that fee-bumps t at
// feePerByte. changeAddress is used when t had no change of its own.
func (t *Transaction) ReplaceRequest(feePerByte uint64, changeAddress string) btc.ReplaceRequest {
	req := btc.ReplaceRequest{
		Outputs:       t.Outputs,
		Fee:           t.Fee,
		FeePerByte:    feePerByte,
		ChangeAddress: changeAddress,
	}
	if t.HadChange() {
		req.ChangeAddress = t.ChangeAddress
		req.HadChange = true
	}
	return req
}

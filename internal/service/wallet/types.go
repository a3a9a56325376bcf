package wallet

import (
	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
)

// State is the lifecycle state of a Service.
type State int

// Lifecycle states. A wallet moves created → initializing → initialized
// → loading → loaded, or to error when loading fails. Opening a public key
// whose paths do not match the configured ones leaves it in
// need-initialization.
const (
	StateCreated State = iota
	StateInitializing
	StateInitialized
	StateNeedInitialization
	StateLoading
	StateLoaded
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateNeedInitialization:
		return "need-initialization"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SendRequest describes a payment from the wallet.
type SendRequest struct {
	Address string
	Amount  uint64
	FeeRate string
}

// ImportEstimate is the outcome of sizing a sweep of a foreign key.
type ImportEstimate struct {
	// Value is the total of the key's spendable outputs.
	Value uint64
	// Fee is the miner fee plus the service fee.
	Fee uint64
	// Sendable is what the wallet receives.
	Sendable uint64
}

// ReplacementEstimate is the cost of fee-bumping a pending transaction.
type ReplacementEstimate struct {
	Percent decimal.Decimal
	Fee     uint64
}

// Page is one page of history.
type Page struct {
	Transactions []history.Transaction
	HasMore      bool
	// Cursor is the id to pass for the next page; empty when HasMore is false.
	Cursor string
}

// ExportedKey is the private key of one funded address.
type ExportedKey struct {
	Address string `json:"address"`
	WIF     string `json:"privatekey"`
}

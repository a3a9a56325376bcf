// Package wallet provides the wallet engine: account state, the UTXO set,
// fee estimation, transaction construction and history, without CLI
// dependencies.
package wallet

import (
	"context"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
)

// Indexer is the node API used for discovery, history and broadcast.
type Indexer interface {
	AddressInfo(ctx context.Context, addresses []string) ([]indexer.AddressInfo, error)
	Unspents(ctx context.Context, addresses []string) ([]btc.Unspent, error)
	SortedTxIDs(ctx context.Context, txIDs []string) ([]string, error)
	Transactions(ctx context.Context, txIDs []string) ([]indexer.RawTx, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// FeeSource provides the service fee policy and the named miner fee rates.
type FeeSource interface {
	Policy(ctx context.Context, dust uint64) (*servicefee.Policy, error)
	FeeRates(ctx context.Context) (servicefee.FeeRates, error)
}

// StateStore persists the balance and per-type derive indexes.
type StateStore interface {
	Balance() (uint64, bool, error)
	SetBalance(v uint64) error
	DeriveIndex(t btc.AddressType) (uint32, bool, error)
	SetDeriveIndex(t btc.AddressType, idx uint32) error
	Save() error
}

// Recorder receives wallet metrics.
type Recorder interface {
	ObserveDiscoveryRound(addressType, branch string, size, used int)
	RecordBroadcast(err error)
	RecordCommit(kind string)
	SetBalance(sats uint64)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopRecorder struct{}

func (nopRecorder) ObserveDiscoveryRound(string, string, int, int) {}
func (nopRecorder) RecordBroadcast(error)                         {}
func (nopRecorder) RecordCommit(string)                           {}
func (nopRecorder) SetBalance(uint64)                             {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}

// Package discovery finds the used part of each derivation chain by asking
// the indexer about growing batches of addresses.
package discovery

import (
	"context"
	"sort"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Batch sizing. The first round asks for InitialBatchSize addresses and
// every later round one more, up to MaxBatchSize.
const (
	InitialBatchSize = 3
	MaxBatchSize     = 10
)

// ErrInfoMismatch indicates the indexer answered for a different address set.
var ErrInfoMismatch = &walleterr.WalletError{
	Code:     "DISCOVERY_MISMATCH",
	Message:  "indexer returned info for an unexpected address",
	ExitCode: walleterr.ExitGeneral,
}

// InfoSource answers usage questions for a batch of addresses.
type InfoSource interface {
	AddressInfo(ctx context.Context, addresses []string) ([]indexer.AddressInfo, error)
}

// Deriver produces consecutive addresses of one branch. *wallet.Account
// implements it.
type Deriver interface {
	Addresses(branch wallet.Branch, from, count uint32) ([]string, error)
}

// Logger receives per-round debug output.
type Logger interface {
	Debug(format string, args ...any)
}

// RoundObserver is told about every completed round.
type RoundObserver interface {
	ObserveDiscoveryRound(addressType, branch string, size, used int)
}

// Target is one account to discover.
type Target struct {
	Type    btc.AddressType
	Deriver Deriver
}

// ChainResult is the outcome of discovering one branch.
type ChainResult struct {
	// Addresses holds every address from index 0 through the last used
	// one, in derivation order.
	Addresses        []string
	UnspentAddresses []string
	TxIDs            []string
	Rounds           int
}

// AccountResult joins both branches of one account.
type AccountResult struct {
	Type             btc.AddressType
	Addresses        []string
	ChangeAddresses  []string
	UnspentAddresses []string
	TxIDs            []string
}

// Result is the merged outcome for all accounts.
type Result struct {
	Accounts         []AccountResult
	UnspentAddresses []string
	TxIDs            map[string]struct{}
}

// Account returns the result for t, or nil.
func (r *Result) Account(t btc.AddressType) *AccountResult {
	for i := range r.Accounts {
		if r.Accounts[i].Type == t {
			return &r.Accounts[i]
		}
	}
	return nil
}

// SortedTxIDs returns the transaction ids in lexical order.
func (r *Result) SortedTxIDs() []string {
	ids := make([]string, 0, len(r.TxIDs))
	for id := range r.TxIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// merge folds account results in target order. The union and
// concatenation used here do not depend on which account finished first.
func merge(accounts []AccountResult) *Result {
	res := &Result{
		Accounts: accounts,
		TxIDs:    make(map[string]struct{}),
	}
	for _, a := range accounts {
		res.UnspentAddresses = append(res.UnspentAddresses, a.UnspentAddresses...)
		for _, id := range a.TxIDs {
			res.TxIDs[id] = struct{}{}
		}
	}
	return res
}

// union returns the distinct ids of a and b, a's order first.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

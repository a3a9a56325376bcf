package discovery

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// Options configures a Scanner. Nil fields are ignored.
type Options struct {
	Logger   Logger
	Observer RoundObserver
}

// Scanner runs discovery against one indexer.
type Scanner struct {
	source   InfoSource
	logger   Logger
	observer RoundObserver
}

// NewScanner creates a Scanner.
func NewScanner(source InfoSource, opts *Options) *Scanner {
	s := &Scanner{source: source}
	if opts != nil {
		s.logger = opts.Logger
		s.observer = opts.Observer
	}
	return s
}

// Scan discovers every target concurrently. Nothing is returned unless
// all of them succeed; the first failure cancels the rest.
func (s *Scanner) Scan(ctx context.Context, targets []Target) (*Result, error) {
	accounts := make([]AccountResult, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			res, err := s.ScanAccount(ctx, target)
			if err != nil {
				return err
			}
			accounts[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merge(accounts), nil
}

// ScanAccount discovers the external and internal branch of one account
// concurrently and joins them.
func (s *Scanner) ScanAccount(ctx context.Context, target Target) (*AccountResult, error) {
	var external, internal *ChainResult

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		external, err = s.ScanChain(ctx, target.Type, target.Deriver, wallet.External)
		return err
	})
	g.Go(func() error {
		var err error
		internal, err = s.ScanChain(ctx, target.Type, target.Deriver, wallet.Internal)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &AccountResult{
		Type:             target.Type,
		Addresses:        external.Addresses,
		ChangeAddresses:  internal.Addresses,
		UnspentAddresses: append(append([]string{}, external.UnspentAddresses...), internal.UnspentAddresses...),
		TxIDs:            union(external.TxIDs, internal.TxIDs),
	}, nil
}

// ScanChain walks one branch until a whole batch is unused. Each index is
// derived exactly once. Unused addresses that trail the last used one in
// a batch are held back and only kept if a later batch turns out to be
// used, so Addresses[i] is always the address at index i.
func (s *Scanner) ScanChain(ctx context.Context, t btc.AddressType, d Deriver, branch wallet.Branch) (*ChainResult, error) {
	res := &ChainResult{}
	seen := make(map[string]struct{})

	var (
		next    uint32
		pending []string
	)
	for size := InitialBatchSize; ; size = min(size+1, MaxBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := d.Addresses(branch, next, uint32(size)) //nolint:gosec // size is at most MaxBatchSize
		if err != nil {
			return nil, fmt.Errorf("deriving %s %s addresses from %d: %w", t, branch, next, err)
		}
		next += uint32(size) //nolint:gosec // size is at most MaxBatchSize

		infos, err := s.source.AddressInfo(ctx, batch)
		if err != nil {
			return nil, err
		}
		byAddress, err := indexInfos(batch, infos)
		if err != nil {
			return nil, err
		}

		lastUsed := 0
		for i, addr := range batch {
			info, ok := byAddress[addr]
			if !ok {
				continue
			}
			if info.Used() {
				lastUsed = i + 1
			}
			if info.Balance > 0 {
				res.UnspentAddresses = append(res.UnspentAddresses, addr)
			}
			for _, id := range info.TxIDs {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					res.TxIDs = append(res.TxIDs, id)
				}
			}
		}
		res.Rounds++

		if s.observer != nil {
			s.observer.ObserveDiscoveryRound(t.String(), branch.String(), size, lastUsed)
		}
		if s.logger != nil {
			s.logger.Debug("discovery %s/%s round %d: %d addresses from %d, last used %d",
				t, branch, res.Rounds, size, next-uint32(size), lastUsed) //nolint:gosec // size is at most MaxBatchSize
		}

		if lastUsed == 0 {
			return res, nil
		}
		res.Addresses = append(res.Addresses, pending...)
		res.Addresses = append(res.Addresses, batch[:lastUsed]...)
		pending = append([]string(nil), batch[lastUsed:]...)
	}
}

func indexInfos(batch []string, infos []indexer.AddressInfo) (map[string]indexer.AddressInfo, error) {
	want := make(map[string]struct{}, len(batch))
	for _, a := range batch {
		want[a] = struct{}{}
	}
	out := make(map[string]indexer.AddressInfo, len(infos))
	for _, info := range infos {
		if _, ok := want[info.Address]; !ok {
			return nil, walleterr.WithDetails(ErrInfoMismatch, map[string]string{"address": info.Address})
		}
		out[info.Address] = info
	}
	return out, nil
}

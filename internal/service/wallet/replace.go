package wallet

import (
	"context"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// EstimateReplacement returns the bump percentage and the additional fee
// of replacing tx at its fee rate times the network replacement factor.
func (s *Service) EstimateReplacement(_ context.Context, tx *history.Transaction) (ReplacementEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, extra, err := s.buildReplacement(tx, true)
	if err != nil {
		return ReplacementEstimate{}, err
	}
	return ReplacementEstimate{Percent: s.net.ReplacementPercent(), Fee: extra}, nil
}

// CreateReplacementTransaction signs and broadcasts the fee-bumped
// replacement of tx and returns the new txid. On success the original
// transaction's inputs are tracked again, its outputs and id are dropped
// and the replacement is committed.
func (s *Service) CreateReplacementTransaction(ctx context.Context, tx *history.Transaction, seed []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	builder, _, err := s.buildReplacement(tx, false)
	if err != nil {
		return "", err
	}
	if err := builder.Sign(s.keyFunc(seed)); err != nil {
		return "", err
	}
	txID, err := s.broadcast(ctx, builder)
	if err != nil {
		return "", err
	}
	s.restoreReplaced(tx)
	s.commit(txID, builder.Inputs(), builder.Outputs(), "replace")
	return txID, nil
}

// buildReplacement spends the original inputs first and then confirmed
// wallet outputs. The change goes to the original change address, or to
// the next change address when the original paid none.
func (s *Service) buildReplacement(tx *history.Transaction, vsizeOnly bool) (*btc.TxBuilder, uint64, error) {
	if tx == nil || !tx.RBF {
		id := ""
		if tx != nil {
			id = tx.ID
		}
		return nil, 0, walleterr.WithDetails(walleterr.ErrNotRBF, map[string]string{"txid": id})
	}

	change := tx.ChangeAddress
	if change == "" {
		var err error
		change, err = s.nextChangeAddress(s.addressType)
		if err != nil {
			return nil, 0, err
		}
	}

	candidates := make([]btc.Unspent, 0, len(tx.Inputs)+len(s.unspents))
	candidates = append(candidates, tx.Inputs...)
	candidates = append(candidates, s.spendable(false)...)

	builder := btc.NewTxBuilder(btc.BuilderOptions{
		Network:   s.net,
		Unspents:  candidates,
		VsizeOnly: vsizeOnly,
	})
	feePerByte := s.net.ReplacementFeePerByte(tx.FeePerByte)
	extra, err := builder.Replace(tx.ReplaceRequest(feePerByte, change))
	if err != nil {
		return nil, 0, err
	}
	return builder, extra, nil
}

// restoreReplaced undoes the bookkeeping of the replaced transaction.
func (s *Service) restoreReplaced(tx *history.Transaction) {
	replaced := make(map[string]struct{}, len(tx.Outputs))
	for _, o := range tx.Outputs {
		replaced[o.Outpoint()] = struct{}{}
	}

	kept := make([]btc.Unspent, 0, len(s.unspents)+len(tx.Inputs))
	kept = append(kept, tx.Inputs...)
	for _, u := range s.unspents {
		if _, ok := replaced[u.Outpoint()]; !ok {
			kept = append(kept, u)
		}
	}
	s.unspents = kept
	delete(s.txIDs, tx.ID)
	s.transactions.Delete(tx.ID)
	s.logger.Debug("replaced %s: restored %d inputs", tx.ID, len(tx.Inputs))
}

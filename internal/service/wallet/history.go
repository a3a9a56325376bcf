package wallet

import (
	"context"
	"slices"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/history"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// LoadTransactions returns the page of history after cursor, newest
// first. An empty cursor starts over and refetches the ordering.
func (s *Service) LoadTransactions(ctx context.Context, cursor string) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cursor == "" {
		s.sortedTxIDs.Clear()
		s.transactions.Clear()
	}
	ids, err := s.sortedTxIDs.Get(struct{}{}, func() ([]string, error) {
		if len(s.txIDs) == 0 {
			return nil, nil
		}
		return s.indexer.SortedTxIDs(ctx, s.sortedIDs())
	})
	if err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		i := slices.Index(ids, cursor)
		if i < 0 {
			return nil, walleterr.WithDetails(walleterr.ErrTransactionNotFound, map[string]string{"txid": cursor})
		}
		start = i + 1
	}
	end := min(start+s.txPerPage, len(ids))
	page := ids[start:end]

	txs := make([]history.Transaction, 0, len(page))
	if len(page) > 0 {
		raws, err := s.indexer.Transactions(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, tx := range s.interpreter().InterpretAll(raws) {
			s.transactions.Set(tx.ID, tx)
			txs = append(txs, tx)
		}
	}

	out := &Page{Transactions: txs, HasMore: len(page) == s.txPerPage}
	if out.HasMore {
		out.Cursor = page[len(page)-1]
	}
	return out, nil
}

// LoadTransaction returns the history entry of a wallet transaction.
func (s *Service) LoadTransaction(ctx context.Context, txID string) (*history.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txIDs[txID]; !ok {
		return nil, walleterr.WithDetails(walleterr.ErrTransactionNotFound, map[string]string{"txid": txID})
	}
	tx, err := s.transactions.Get(txID, func() (history.Transaction, error) {
		raws, err := s.indexer.Transactions(ctx, []string{txID})
		if err != nil {
			return history.Transaction{}, err
		}
		if len(raws) == 0 {
			return history.Transaction{}, walleterr.WithDetails(walleterr.ErrTransactionNotFound, map[string]string{"txid": txID})
		}
		return s.interpreter().Interpret(raws[0]), nil
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Service) interpreter() *history.Interpreter {
	return history.NewInterpreter(s.net, history.OwnerFunc(s.owns))
}

package wallet

import (
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/wallet"
)

// commit applies a broadcast transaction to the wallet state: its inputs
// leave the UTXO set, outputs paying the wallet join it unconfirmed, and
// outputs paying the next receive or change address advance that list.
// Persistence failures are logged; the transaction is already on the
// network.
func (s *Service) commit(txID string, inputs []btc.Unspent, outputs []btc.Output, kind string) {
	spent := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		spent[in.Outpoint()] = struct{}{}
	}
	kept := s.unspents[:0:0]
	for _, u := range s.unspents {
		if _, ok := spent[u.Outpoint()]; !ok {
			kept = append(kept, u)
		}
	}

	for vout, out := range outputs {
		acc, ok := s.accounts[out.Type]
		if !ok {
			continue
		}
		s.advance(acc, out)
		if !acc.owns(out.Address) {
			continue
		}
		kept = append(kept, btc.Unspent{
			Address: out.Address,
			Type:    out.Type,
			TxID:    txID,
			Vout:    uint32(vout), //nolint:gosec // output counts stay far below MaxUint32
			Value:   out.Value,
		})
	}

	s.unspents = kept
	s.txIDs[txID] = struct{}{}
	s.balance = btc.SumValues(kept)
	s.invalidate()

	if err := s.state.SetBalance(s.balance); err != nil {
		s.logger.Error("saving balance: %v", err)
	} else if err := s.state.Save(); err != nil {
		s.logger.Error("saving wallet state: %v", err)
	}
	s.metrics.RecordCommit(kind)
	s.metrics.SetBalance(s.balance)
	s.logger.Debug("committed %s %s: %d inputs, %d outputs", kind, txID, len(inputs), len(outputs))
}

// advance appends out's address to the change or receive list when it is
// the next address of that list. Receive addresses handed out before it
// are appended too, so list positions stay derivation indexes.
func (s *Service) advance(acc *account, out btc.Output) {
	if next, err := s.nextChangeAddress(out.Type); err == nil && next == out.Address {
		acc.changeAddresses = append(acc.changeAddresses, out.Address)
		return
	}
	idx := s.receiveIndex(acc, out.Type)
	next, err := acc.Address(wallet.External, idx)
	if err != nil || next != out.Address {
		return
	}
	for i := uint32(len(acc.addresses)); i < idx; i++ { //nolint:gosec // address lists stay far below MaxUint32
		skipped, err := acc.Address(wallet.External, i)
		if err != nil {
			s.logger.Error("deriving receive address %d for %s: %v", i, out.Type, err)
			return
		}
		acc.addresses = append(acc.addresses, skipped)
	}
	acc.addresses = append(acc.addresses, out.Address)
	if err := s.state.SetDeriveIndex(out.Type, idx+1); err != nil {
		s.logger.Error("saving derive index for %s: %v", out.Type, err)
	}
}

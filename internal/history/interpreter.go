package history

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/indexer"
)

// Owner reports whether an address is one of the wallet's receive or
// change addresses.
type Owner interface {
	Owns(address string) bool
}

// OwnerFunc adapts a function to Owner.
type OwnerFunc func(address string) bool

// Owns calls f.
func (f OwnerFunc) Owns(address string) bool { return f(address) }

// rbfSequenceLimit is the first sequence that no longer signals replaceability.
const rbfSequenceLimit = wire.MaxTxInSequenceNum - 1

// Interpreter converts raw records for one network and one set of owned addresses.
type Interpreter struct {
	net   *btc.Network
	owner Owner
}

// NewInterpreter returns an Interpreter.
func NewInterpreter(net *btc.Network, owner Owner) *Interpreter {
	return &Interpreter{net: net, owner: owner}
}

// InterpretAll converts records in order.
func (in *Interpreter) InterpretAll(raws []indexer.RawTx) []Transaction {
	out := make([]Transaction, 0, len(raws))
	for _, raw := range raws {
		out = append(out, in.Interpret(raw))
	}
	return out
}

// Interpret converts one record.
func (in *Interpreter) Interpret(raw indexer.RawTx) Transaction {
	var (
		ownedIn, ownedOut, csFee uint64
		signals                  bool
		inputs, outputs          []btc.Unspent
		changeAddress            string
	)
	vsize := btc.NewVsize(true)

	for _, vin := range raw.Vin {
		typ := btc.TypeOf(vin.Address, in.net)
		if in.owner.Owns(vin.Address) {
			ownedIn += vin.ValueSat
		}
		if vin.Sequence < rbfSequenceLimit {
			signals = true
		}
		vsize.AddInputs(typ, 1)
		inputs = append(inputs, btc.Unspent{
			Address:       vin.Address,
			Type:          typ,
			Confirmations: in.net.MinConf,
			TxID:          vin.TxID,
			Vout:          vin.Vout,
			Value:         vin.ValueSat,
		})
	}

	for i, vout := range raw.Vout {
		addr := vout.Address()
		typ := btc.TypeOf(addr, in.net)
		switch {
		case addr != "" && in.owner.Owns(addr):
			ownedOut += vout.ValueSat
			if i != 0 {
				changeAddress = addr
			}
		case vout.CSFee:
			csFee += vout.ValueSat
		}
		vsize.AddOutputs(typ, 1)
		outputs = append(outputs, btc.Unspent{
			Address:       addr,
			Type:          typ,
			Confirmations: raw.Confirmations,
			TxID:          raw.TxID,
			Vout:          uint32(i), //nolint:gosec // output count fits in uint32
			Value:         vout.ValueSat,
			CSFee:         vout.CSFee,
		})
	}

	minerFee := chain.WholeUnitsToSats(raw.Fees)
	tx := Transaction{
		ID:               raw.TxID,
		Fee:              csFee + minerFee,
		Timestamp:        time.Unix(raw.Time, 0).UTC(),
		Confirmations:    raw.Confirmations,
		MinConfirmations: in.net.MinConf,
		FeePerByte:       feePerByte(minerFee, vsize.Value()),
		Status:           StatusPending,
	}
	if raw.Confirmations >= in.net.MinConf {
		tx.Status = StatusConfirmed
	}
	if in.net.TxURL != "" {
		tx.URL = fmt.Sprintf(in.net.TxURL, raw.TxID)
	}

	if ownedOut > ownedIn {
		tx.Incoming = true
		tx.Amount = ownedOut - ownedIn
	} else {
		spent := ownedIn - ownedOut
		if spent > tx.Fee {
			tx.Amount = spent - tx.Fee
		}
		if len(raw.Vout) > 0 {
			tx.To = raw.Vout[0].Address()
		}
		tx.ChangeAddress = changeAddress
		tx.RBF = in.net.BIP125 &&
			raw.Confirmations == 0 &&
			signals &&
			in.bumpedRateAllowed(tx.FeePerByte)
	}

	if tx.RBF {
		tx.Inputs = inputs
		tx.Outputs = outputs
	}
	return tx
}

// bumpedRateAllowed reports whether feePerByte * RBFFactor stays under the
// network cap.
func (in *Interpreter) bumpedRateAllowed(feePerByte uint64) bool {
	bumped := decimal.NewFromInt(int64(feePerByte)).Mul(in.net.RBFFactor) //nolint:gosec // fee rates stay far below MaxInt64
	return bumped.LessThan(decimal.NewFromInt(int64(in.net.MaxFeePerByte))) //nolint:gosec // constant network cap
}

// feePerByte returns ceil(fee / vsize), or 0 when the size is unknown.
func feePerByte(fee, vsize uint64) uint64 {
	if vsize == 0 {
		return 0
	}
	return (fee + vsize - 1) / vsize
}

package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// txVersion is the version of every transaction the wallet builds.
const txVersion = 2

// ServiceFee is the platform fee policy applied to new transactions.
type ServiceFee interface {
	// Enabled reports whether a service fee output is added at all.
	Enabled() bool
	// Address receives the service fee.
	Address() string
	// Compute returns the fee charged for sending principal.
	Compute(principal uint64) uint64
}

// BuilderOptions configures a TxBuilder.
type BuilderOptions struct {
	Network *Network

	// Unspents are the candidate inputs in selection order.
	Unspents []Unspent

	// VsizeOnly skips transaction construction and only tracks sizes.
	VsizeOnly bool

	// Uncompressed sizes P2PKH inputs for uncompressed public keys.
	Uncompressed bool
}

// BuildRequest describes a new payment.
type BuildRequest struct {
	Address string
	Value   uint64
	FeeRate uint64 // per vbyte

	// ChangeAddress is optional. Without it any leftover goes to the miner.
	ChangeAddress string

	// ServiceFee may be nil when no policy applies.
	ServiceFee ServiceFee
}

// TxBuilder selects inputs and assembles one transaction. A builder is
// used for a single Build or Replace call.
type TxBuilder struct {
	net       *Network
	unspents  []Unspent
	vsize     *Vsize
	vsizeOnly bool

	inputs      []Unspent
	prevScripts [][]byte
	outputs     []Output
	tx          *wire.MsgTx
}

// NewTxBuilder returns a builder over opts.Unspents.
func NewTxBuilder(opts BuilderOptions) *TxBuilder {
	return &TxBuilder{
		net:       opts.Network,
		unspents:  opts.Unspents,
		vsize:     NewVsize(!opts.Uncompressed),
		vsizeOnly: opts.VsizeOnly,
		tx:        wire.NewMsgTx(txVersion),
	}
}

// Build selects the shortest prefix of the candidates that pays value plus
// fees and returns the total fee (miner fee plus service fee).
func (b *TxBuilder) Build(req BuildRequest) (uint64, error) {
	if err := b.addOutput(req.Address, req.Value, true); err != nil {
		return 0, err
	}

	var csFee uint64
	if req.ServiceFee != nil && req.ServiceFee.Enabled() {
		csFee = req.ServiceFee.Compute(req.Value)
		if err := b.addOutput(req.ServiceFee.Address(), csFee, true); err != nil {
			return 0, fmt.Errorf("service fee output: %w", err)
		}
	}

	changeType := AddressUnknown
	if req.ChangeAddress != "" {
		changeType = TypeOf(req.ChangeAddress, b.net)
		b.vsize.AddOutputs(changeType, 1)
	}

	var accum, fee, change uint64
	covered := false
	for _, u := range b.unspents {
		if err := b.addInput(u); err != nil {
			return 0, err
		}
		accum += u.Value
		fee = b.vsize.Value()*req.FeeRate + csFee
		if accum >= req.Value+fee {
			change = accum - req.Value - fee
			covered = true
			break
		}
	}
	if !covered {
		return 0, walleterr.WithDetails(walleterr.ErrInsufficientFunds, map[string]string{
			"available": fmt.Sprint(accum),
			"required":  fmt.Sprint(req.Value + fee),
		})
	}

	switch {
	case req.ChangeAddress == "":
		fee += change
	case change >= b.net.DustThreshold:
		// The slot was reserved up front.
		if err := b.addOutput(req.ChangeAddress, change, false); err != nil {
			return 0, fmt.Errorf("change output: %w", err)
		}
	default:
		b.vsize.AddOutputs(changeType, -1)
		fee = b.vsize.Value()*req.FeeRate + csFee
	}
	return fee, nil
}

// Inputs returns the selected inputs in transaction order.
func (b *TxBuilder) Inputs() []Unspent { return b.inputs }

// Outputs returns the constructed outputs in transaction order.
func (b *TxBuilder) Outputs() []Output { return b.outputs }

// Vsize returns the current virtual size estimate.
func (b *TxBuilder) Vsize() uint64 { return b.vsize.Value() }

func (b *TxBuilder) sequence() uint32 {
	if b.net.BIP125 {
		// Opt in to replacement.
		return wire.MaxTxInSequenceNum - 2
	}
	return wire.MaxTxInSequenceNum
}

func (b *TxBuilder) addInput(u Unspent) error {
	b.vsize.AddInputs(u.Type, 1)
	if b.vsizeOnly {
		return nil
	}

	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"txid": u.TxID})
	}
	decoded, err := DecodeAddress(u.Address, b.net)
	if err != nil {
		return err
	}

	in := wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
	in.Sequence = b.sequence()
	b.tx.AddTxIn(in)
	b.inputs = append(b.inputs, u)
	b.prevScripts = append(b.prevScripts, decoded.Script)
	return nil
}

func (b *TxBuilder) addOutput(address string, value uint64, countVsize bool) error {
	decoded, err := DecodeAddress(address, b.net)
	if err != nil {
		return err
	}
	if countVsize {
		b.vsize.AddOutputs(decoded.Type, 1)
	}
	if b.vsizeOnly {
		return nil
	}

	b.tx.AddTxOut(wire.NewTxOut(int64(value), decoded.Script)) //nolint:gosec // bounded by the coin supply
	b.outputs = append(b.outputs, Output{Address: address, Type: decoded.Type, Value: value})
	return nil
}

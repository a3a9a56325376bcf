package wallet

import (
	"context"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

type preparedImport struct {
	ImportEstimate

	key      *btc.Key
	unspents []btc.Unspent
	policy   *servicefee.Policy
	rate     uint64
}

// EstimateImport sizes a sweep of every output held by the key in wif
// into the wallet.
func (s *Service) EstimateImport(ctx context.Context, wif, feeRate string) (ImportEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepareImport(ctx, wif, feeRate)
	if err != nil {
		return ImportEstimate{}, err
	}
	return p.ImportEstimate, nil
}

// CreateImport sweeps the outputs of the key in wif to the wallet's next
// receive address and returns the txid. No change output is created.
func (s *Service) CreateImport(ctx context.Context, wif, feeRate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepareImport(ctx, wif, feeRate)
	if err != nil {
		return "", err
	}
	to, err := s.nextAddress(s.addressType)
	if err != nil {
		return "", err
	}

	builder := btc.NewTxBuilder(btc.BuilderOptions{
		Network:      s.net,
		Unspents:     p.unspents,
		Uncompressed: !p.key.Compressed,
	})
	if _, err := builder.Build(btc.BuildRequest{
		Address:    to,
		Value:      p.Sendable,
		FeeRate:    p.rate,
		ServiceFee: p.policy,
	}); err != nil {
		return "", err
	}
	if err := builder.Sign(func(btc.Unspent) (*btc.Key, error) { return p.key, nil }); err != nil {
		return "", err
	}
	txID, err := s.broadcast(ctx, builder)
	if err != nil {
		return "", err
	}
	s.commit(txID, builder.Inputs(), builder.Outputs(), "import")
	return txID, nil
}

// prepareImport collects the spendable outputs of every address the key
// can own and subtracts the fees of sweeping them. Uncompressed keys only
// own a P2PKH address.
func (s *Service) prepareImport(ctx context.Context, wif, feeRate string) (*preparedImport, error) {
	key, err := btc.DecodeWIF(wif, s.net)
	if err != nil {
		return nil, err
	}
	rate, err := s.feeRate(feeRate)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(s.net.AddressTypes))
	for _, t := range s.net.AddressTypes {
		if !key.Compressed && t != btc.P2PKH {
			continue
		}
		addr, err := btc.AddressFromPublicKey(key.PublicKey(), t, s.net)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}

	found, err := s.indexer.Unspents(ctx, addresses)
	if err != nil {
		return nil, err
	}
	unspents := btc.SelectSpendable(found, s.net.MinConf, false, s.maxInputs)

	vsize := btc.NewVsize(key.Compressed)
	var value uint64
	for _, u := range unspents {
		vsize.AddInputs(u.Type, 1)
		value += u.Value
	}
	if value < s.net.DustThreshold {
		return nil, walleterr.SmallAmount(s.net.DustThreshold)
	}

	vsize.AddOutputs(s.addressType, 1)
	policy, err := s.policy(ctx)
	if err != nil {
		return nil, err
	}
	if policy.Enabled() {
		vsize.AddOutputs(btc.TypeOf(policy.Address(), s.net), 1)
	}

	minerFee := vsize.Value() * rate
	if value <= minerFee {
		return nil, walleterr.SmallAmount(s.net.DustThreshold)
	}
	fee := minerFee + policy.Compute(value-minerFee)
	if value < fee+s.net.DustThreshold {
		return nil, walleterr.SmallAmount(s.net.DustThreshold)
	}

	return &preparedImport{
		ImportEstimate: ImportEstimate{Value: value, Fee: fee, Sendable: value - fee},
		key:            key,
		unspents:       unspents,
		policy:         policy,
		rate:           rate,
	}, nil
}

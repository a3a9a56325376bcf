package wallet

import (
	"context"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// EstimateMaxAmount returns the largest amount that can be sent to address
// at feeRate after the miner fee and the service fee. Only confirmed
// outputs count unless unconfirmed is set. Zero means nothing is spendable.
func (s *Service) EstimateMaxAmount(ctx context.Context, address, feeRate string, unconfirmed bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimateMax(ctx, address, feeRate, unconfirmed)
}

func (s *Service) estimateMax(ctx context.Context, address, feeRate string, unconfirmed bool) (uint64, error) {
	if err := btc.ValidateAddress(address, s.net); err != nil {
		return 0, err
	}
	rate, err := s.feeRate(feeRate)
	if err != nil {
		return 0, err
	}
	output := btc.TypeOf(address, s.net)

	return s.maxAmount.Get(maxKey{output: output, feeRate: rate, unconfirmed: unconfirmed}, func() (uint64, error) {
		unspents := s.spendable(unconfirmed)
		if len(unspents) == 0 {
			return 0, nil
		}

		vsize := btc.NewVsize(true)
		var available uint64
		for _, u := range unspents {
			vsize.AddInputs(u.Type, 1)
			available += u.Value
		}
		if available < s.net.DustThreshold {
			return 0, nil
		}

		vsize.AddOutputs(output, 1)
		policy, err := s.policy(ctx)
		if err != nil {
			return 0, err
		}
		if policy.Enabled() {
			vsize.AddOutputs(btc.TypeOf(policy.Address(), s.net), 1)
		}

		minerFee := vsize.Value() * rate
		if available <= minerFee {
			return 0, nil
		}
		csFee := policy.Compute(available - minerFee)
		if available-minerFee < csFee+s.net.DustThreshold {
			return 0, nil
		}
		return available - minerFee - csFee, nil
	})
}

// ValidateAmount checks req.Amount against the dust threshold and the
// maximum spendable amount.
func (s *Service) ValidateAmount(ctx context.Context, req SendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.validateAmount(ctx, req)
	return err
}

// validateAmount returns the confirmed maximum for req when req.Amount
// fits within it.
func (s *Service) validateAmount(ctx context.Context, req SendRequest) (uint64, error) {
	if req.Amount < s.net.DustThreshold {
		return 0, walleterr.SmallAmount(s.net.DustThreshold)
	}
	maxAmount, err := s.estimateMax(ctx, req.Address, req.FeeRate, false)
	if err != nil {
		return 0, err
	}
	if req.Amount <= maxAmount {
		return maxAmount, nil
	}
	unconfirmedMax, err := s.estimateMax(ctx, req.Address, req.FeeRate, true)
	if err != nil {
		return 0, err
	}
	if req.Amount < unconfirmedMax {
		return 0, walleterr.BigAmountConfirmationPending(maxAmount)
	}
	return 0, walleterr.BigAmount(maxAmount)
}

// EstimateTransactionFee returns the miner fee plus the service fee of
// sending req without building a transaction.
func (s *Service) EstimateTransactionFee(ctx context.Context, req SendRequest) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := btc.ValidateAddress(req.Address, s.net); err != nil {
		return 0, err
	}
	rate, err := s.feeRate(req.FeeRate)
	if err != nil {
		return 0, err
	}
	return s.feeEstimate.Get(feeKey{address: req.Address, amount: req.Amount, feeRate: rate}, func() (uint64, error) {
		builder, err := s.buildSend(ctx, req, rate, true)
		if err != nil {
			return 0, err
		}
		return builder.fee, nil
	})
}

// CreateTransaction builds, signs and broadcasts a payment and returns its
// txid. Wallet state changes only after the broadcast succeeds.
func (s *Service) CreateTransaction(ctx context.Context, req SendRequest, seed []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := btc.ValidateAddress(req.Address, s.net); err != nil {
		return "", err
	}
	rate, err := s.feeRate(req.FeeRate)
	if err != nil {
		return "", err
	}
	built, err := s.buildSend(ctx, req, rate, false)
	if err != nil {
		return "", err
	}
	if err := built.Sign(s.keyFunc(seed)); err != nil {
		return "", err
	}
	txID, err := s.broadcast(ctx, built.TxBuilder)
	if err != nil {
		return "", err
	}
	s.commit(txID, built.Inputs(), built.Outputs(), "send")
	return txID, nil
}

// PreparePSBT builds req like CreateTransaction but returns the unsigned
// transaction as a base64 PSBT for an external signer. Nothing is
// broadcast or committed.
func (s *Service) PreparePSBT(ctx context.Context, req SendRequest) (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := btc.ValidateAddress(req.Address, s.net); err != nil {
		return "", 0, err
	}
	rate, err := s.feeRate(req.FeeRate)
	if err != nil {
		return "", 0, err
	}
	built, err := s.buildSend(ctx, req, rate, false)
	if err != nil {
		return "", 0, err
	}
	packet, err := built.PSBT()
	if err != nil {
		return "", 0, err
	}
	return packet, built.fee, nil
}

// builtTx is a builder together with the fee its build reported.
type builtTx struct {
	*btc.TxBuilder
	fee uint64
}

// buildSend validates req.Amount and selects inputs for it. A change
// output is reserved only when the wallet could send at least dust more
// than req.Amount.
func (s *Service) buildSend(ctx context.Context, req SendRequest, rate uint64, vsizeOnly bool) (*builtTx, error) {
	maxAmount, err := s.validateAmount(ctx, req)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy(ctx)
	if err != nil {
		return nil, err
	}

	var change string
	if maxAmount-req.Amount >= s.net.DustThreshold {
		change, err = s.nextChangeAddress(s.addressType)
		if err != nil {
			return nil, err
		}
	}

	builder := btc.NewTxBuilder(btc.BuilderOptions{
		Network:   s.net,
		Unspents:  s.spendable(false),
		VsizeOnly: vsizeOnly,
	})
	fee, err := builder.Build(btc.BuildRequest{
		Address:       req.Address,
		Value:         req.Amount,
		FeeRate:       rate,
		ChangeAddress: change,
		ServiceFee:    policy,
	})
	if err != nil {
		return nil, err
	}
	return &builtTx{TxBuilder: builder, fee: fee}, nil
}

// broadcast submits the signed transaction of b and returns its txid.
func (s *Service) broadcast(ctx context.Context, b *btc.TxBuilder) (string, error) {
	raw, err := b.Hex()
	if err != nil {
		return "", err
	}
	_, err = s.indexer.Broadcast(ctx, raw)
	s.metrics.RecordBroadcast(err)
	if err != nil {
		return "", err
	}
	return b.TxID(), nil
}

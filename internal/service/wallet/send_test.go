package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/servicefee"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

func TestEstimateMaxAmount(t *testing.T) {
	t.Parallel()

	idx := newFakeIndexer(t)
	idx.fund(p2wpkh0, btcSats, confirmedConf)
	idx.fund(p2sh0, 5*btcSats, confirmedConf)
	idx.fund(p2pkh0, 2*btcSats, confirmedConf)
	w := loadedWallet(t, idx)

	tests := []struct {
		name    string
		address string
		want    uint64
	}{
		{"p2pkh destination", destP2PKH, 799_632_936},
		{"p2sh destination", destP2SH, 799_632_938},
		{"p2wpkh destination", destP2WPKH, 799_632_939},
		{"p2wsh destination", destP2WSH, 799_632_927},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.EstimateMaxAmount(context.Background(), tc.address, servicefee.RateDefault, false)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEstimateMaxAmountBelowFees(t *testing.T) {
	t.Parallel()

	idx := newFakeIndexer(t)
	idx.fund(p2wpkh0, 2000, confirmedConf)
	w := loadedWallet(t, idx)

	got, err := w.EstimateMaxAmount(context.Background(), destP2PKH, servicefee.RateDefault, false)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestEstimateMaxAmountRejectsInput(t *testing.T) {
	t.Parallel()

	w := loadedWallet(t, newFakeIndexer(t))

	_, err := w.EstimateMaxAmount(context.Background(), "not-an-address", servicefee.RateDefault, false)
	require.ErrorIs(t, err, walleterr.ErrInvalidAddress)

	_, err = w.EstimateMaxAmount(context.Background(), destP2PKH, "turbo", false)
	require.ErrorIs(t, err, walleterr.ErrInvalidFeeRate)
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	idx := newFakeIndexer(t)
	idx.fund(p2wpkh0, btcSats, confirmedConf)
	idx.fund(p2sh0, 5*btcSats, confirmedConf)
	idx.fund(p2pkh0, 2*btcSats, 0)
	w := loadedWallet(t, idx)
	ctx := context.Background()

	err := w.ValidateAmount(ctx, SendRequest{Address: destP2WPKH, Amount: 0, FeeRate: servicefee.RateDefault})
	require.ErrorIs(t, err, walleterr.ErrSmallAmount)
	amount, ok := walleterr.AmountOf(err)
	require.True(t, ok)
	assert.Equal(t, uint64(546), amount)

	err = w.ValidateAmount(ctx, SendRequest{Address: destP2WPKH, Amount: 20 * btcSats, FeeRate: servicefee.RateDefault})
	require.ErrorIs(t, err, walleterr.ErrBigAmount)
	amount, _ = walleterr.AmountOf(err)
	assert.Equal(t, uint64(599_633_087), amount)

	err = w.ValidateAmount(ctx, SendRequest{Address: destP2WPKH, Amount: 7 * btcSats, FeeRate: servicefee.RateDefault})
	require.ErrorIs(t, err, walleterr.ErrBigAmountConfirmationPending)
	amount, _ = walleterr.AmountOf(err)
	assert.Equal(t, uint64(599_633_087), amount)

	require.NoError(t, w.ValidateAmount(ctx, SendRequest{Address: destP2WPKH, Amount: 2 * btcSats, FeeRate: servicefee.RateDefault}))
}

func TestEstimateTransactionFee(t *testing.T) {
	t.Parallel()

	idx := newFakeIndexer(t)
	idx.fund(p2wpkh0, 50_000, confirmedConf)
	idx.fund(p2sh0, 30_000, confirmedConf)
	idx.fund(p2pkh0, 20_000, confirmedConf)
	w := loadedWallet(t, idx)

	maxAmount, err := w.EstimateMaxAmount(context.Background(), destP2PKH, servicefee.RateDefault, false)
	require.NoError(t, err)
	require.Equal(t, uint64(96_603), maxAmount)

	tests := []struct {
		amount uint64
		want   uint64
	}{
		{10_000, 3189},
		{60_000, 3280},
		{maxAmount, 3397},
	}
	for _, tc := range tests {
		fee, err := w.EstimateTransactionFee(context.Background(), SendRequest{
			Address: destP2PKH,
			Amount:  tc.amount,
			FeeRate: servicefee.RateDefault,
		})
		require.NoError(t, err)
		assert.Equal(t, tc.want, fee, "amount %d", tc.amount)
	}
}

// threeCoins funds one whole coin on each address type of the wallet.
func threeCoins(t *testing.T) *fakeIndexer {
	t.Helper()
	idx := newFakeIndexer(t)
	idx.fund(p2wpkh0, btcSats, confirmedConf)
	idx.fund(p2sh0, btcSats, confirmedConf)
	idx.fund(p2pkh0, btcSats, confirmedConf)
	return idx
}

func TestCreateTransaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		opts    []walletOption
		want    uint64
	}{
		{"with service fee", destP2WPKH, nil, 49_632_908},
		{"without service fee", destP2WPKH, []walletOption{withoutServiceFee()}, 49_999_620},
		{"p2wsh destination", destP2WSH, nil, 49_632_896},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			idx := threeCoins(t)
			w := loadedWallet(t, idx, tc.opts...)
			changeBefore, err := w.ChangeAddress()
			require.NoError(t, err)

			id, err := w.CreateTransaction(context.Background(), SendRequest{
				Address: tc.address,
				Amount:  250_000_000,
				FeeRate: servicefee.RateDefault,
			}, w.seed)
			require.NoError(t, err)
			assert.Len(t, id, 64)
			assert.Equal(t, 1, idx.broadcastCount())

			assert.Equal(t, tc.want, w.Balance())
			unspents := w.Unspents()
			require.Len(t, unspents, 1)
			assert.Equal(t, changeBefore, unspents[0].Address)
			assert.Zero(t, unspents[0].Confirmations)

			changeAfter, err := w.ChangeAddress()
			require.NoError(t, err)
			assert.NotEqual(t, changeBefore, changeAfter)
		})
	}
}

func TestCreateTransactionMaxAmount(t *testing.T) {
	t.Parallel()

	w := loadedWallet(t, threeCoins(t))
	ctx := context.Background()

	maxAmount, err := w.EstimateMaxAmount(ctx, destP2WPKH, servicefee.RateDefault, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(299_632_939), maxAmount)

	_, err = w.CreateTransaction(ctx, SendRequest{Address: destP2WPKH, Amount: maxAmount, FeeRate: servicefee.RateDefault}, w.seed)
	require.NoError(t, err)
	assert.Zero(t, w.Balance())
	assert.Empty(t, w.Unspents())
}

func TestCreateTransactionWrongSeed(t *testing.T) {
	t.Parallel()

	idx := threeCoins(t)
	w := loadedWallet(t, idx)
	other := testSeed(t)
	other[1] ^= 0xff

	_, err := w.CreateTransaction(context.Background(), SendRequest{
		Address: destP2WPKH,
		Amount:  btcSats,
		FeeRate: servicefee.RateDefault,
	}, other)
	require.ErrorIs(t, err, walleterr.ErrInvalidInput)
	assert.Zero(t, idx.broadcastCount())
	assert.Equal(t, uint64(300_000_000), w.Balance())
}

func TestCreateTransactionRejectsAmount(t *testing.T) {
	t.Parallel()

	t.Run("below dust", func(t *testing.T) {
		t.Parallel()

		idx := threeCoins(t)
		w := loadedWallet(t, idx, withoutServiceFee())

		_, err := w.CreateTransaction(context.Background(), SendRequest{
			Address: destP2WPKH,
			Amount:  100,
			FeeRate: servicefee.RateDefault,
		}, w.seed)
		require.ErrorIs(t, err, walleterr.ErrSmallAmount)
		amount, ok := walleterr.AmountOf(err)
		require.True(t, ok)
		assert.Equal(t, uint64(546), amount)
		assert.Zero(t, idx.broadcastCount())
		assert.Equal(t, uint64(300_000_000), w.Balance())
	})

	t.Run("above max", func(t *testing.T) {
		t.Parallel()

		idx := threeCoins(t)
		w := loadedWallet(t, idx)
		ctx := context.Background()

		maxAmount, err := w.EstimateMaxAmount(ctx, destP2WPKH, servicefee.RateDefault, false)
		require.NoError(t, err)

		_, err = w.CreateTransaction(ctx, SendRequest{
			Address: destP2WPKH,
			Amount:  maxAmount + 1,
			FeeRate: servicefee.RateDefault,
		}, w.seed)
		require.ErrorIs(t, err, walleterr.ErrBigAmount)
		amount, ok := walleterr.AmountOf(err)
		require.True(t, ok)
		assert.Equal(t, maxAmount, amount)
		assert.Zero(t, idx.broadcastCount())
	})
}

func TestEstimateTransactionFeeRejectsDust(t *testing.T) {
	t.Parallel()

	w := loadedWallet(t, threeCoins(t))

	_, err := w.EstimateTransactionFee(context.Background(), SendRequest{
		Address: destP2WPKH,
		Amount:  545,
		FeeRate: servicefee.RateDefault,
	})
	require.ErrorIs(t, err, walleterr.ErrSmallAmount)

	_, _, err = w.PreparePSBT(context.Background(), SendRequest{
		Address: destP2WPKH,
		Amount:  545,
		FeeRate: servicefee.RateDefault,
	})
	require.ErrorIs(t, err, walleterr.ErrSmallAmount)
}

func TestPreparePSBT(t *testing.T) {
	t.Parallel()

	idx := threeCoins(t)
	w := loadedWallet(t, idx)

	packet, fee, err := w.PreparePSBT(context.Background(), SendRequest{
		Address: destP2WPKH,
		Amount:  250_000_000,
		FeeRate: servicefee.RateDefault,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, packet)
	assert.Equal(t, uint64(367_092), fee)
	assert.Zero(t, idx.broadcastCount())
	assert.Equal(t, uint64(300_000_000), w.Balance())
}

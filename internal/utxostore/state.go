package utxostore

import (
	"fmt"
	"strconv"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
)

const balanceKey = "balance"

// State reads and writes typed wallet values through a KV.
type State struct {
	kv KV
}

// NewState wraps kv.
func NewState(kv KV) *State {
	return &State{kv: kv}
}

// Balance returns the stored balance in smallest units.
func (s *State) Balance() (uint64, bool, error) {
	return s.getUint(balanceKey)
}

// SetBalance stores the balance as a decimal-integer string.
func (s *State) SetBalance(v uint64) error {
	return s.kv.Set(balanceKey, strconv.FormatUint(v, 10))
}

// DeriveIndex returns the next receive index cached for t.
func (s *State) DeriveIndex(t btc.AddressType) (uint32, bool, error) {
	v, ok, err := s.getUint(deriveIndexKey(t))
	if err != nil || !ok {
		return 0, ok, err
	}
	if v > uint64(^uint32(0)) {
		return 0, false, fmt.Errorf("derive index %d out of range", v)
	}
	return uint32(v), true, nil
}

// SetDeriveIndex caches the next receive index for t.
func (s *State) SetDeriveIndex(t btc.AddressType, idx uint32) error {
	return s.kv.Set(deriveIndexKey(t), strconv.FormatUint(uint64(idx), 10))
}

// Save flushes the underlying store.
func (s *State) Save() error {
	return s.kv.Save()
}

func (s *State) getUint(key string) (uint64, bool, error) {
	raw, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return v, true, nil
}

func deriveIndexKey(t btc.AddressType) string {
	return "deriveIndex." + t.String()
}

package btc

import (
	"fmt"
	"sort"
)

// Unspent is a spendable output owned by the wallet, or an input/output
// of a history record kept for replacement.
type Unspent struct {
	Address       string      `json:"address"`
	Type          AddressType `json:"type"`
	Confirmations uint32      `json:"confirmations"`
	TxID          string      `json:"txid"`
	Vout          uint32      `json:"vout"`
	Value         uint64      `json:"value"`
	Coinbase      bool        `json:"coinbase,omitempty"`
	CSFee         bool        `json:"csfee,omitempty"`
}

// Outpoint returns "txid:vout".
func (u Unspent) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Output is a constructed transaction output.
type Output struct {
	Address string      `json:"address"`
	Type    AddressType `json:"type"`
	Value   uint64      `json:"value"`
}

// SumValues returns the total value of unspents.
func SumValues(unspents []Unspent) uint64 {
	var total uint64
	for _, u := range unspents {
		total += u.Value
	}
	return total
}

// SelectSpendable filters unspents by minConf (unless unconfirmed is set),
// orders them by value descending and keeps at most limit entries. Equal
// values keep their original order. The input slice is not modified.
func SelectSpendable(unspents []Unspent, minConf uint32, unconfirmed bool, limit int) []Unspent {
	out := make([]Unspent, 0, len(unspents))
	for _, u := range unspents {
		if unconfirmed || u.Confirmations >= minConf {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

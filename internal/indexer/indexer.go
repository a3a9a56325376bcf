// Package indexer is the client for the insight-style node API that serves
// address info, unspents, transaction details and raw broadcast.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain/btc"
	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// ChunkSize bounds the number of addresses or txids joined into one request path.
const ChunkSize = 50

// AddressInfo is the usage summary of one address.
type AddressInfo struct {
	Address string
	Balance uint64 // confirmed + unconfirmed, in satoshis
	TxCount int
	TxIDs   []string
}

// Used reports whether the address ever appeared in a transaction.
func (a AddressInfo) Used() bool { return a.TxCount > 0 }

// Confirmation is the confirmation state of one transaction.
type Confirmation struct {
	TxID          string `json:"txid"`
	Confirmations uint32 `json:"confirmations"`
	Time          int64  `json:"time,omitempty"`
}

// RawInput is a transaction input as reported by the node.
type RawInput struct {
	Address  string `json:"addr"`
	ValueSat uint64 `json:"valueSat"`
	Sequence uint32 `json:"sequence"`
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
}

// RawOutput is a transaction output as reported by the node.
type RawOutput struct {
	ValueSat     uint64 `json:"valueSat"`
	CSFee        bool   `json:"csfee,omitempty"`
	ScriptPubKey struct {
		Addresses []string `json:"addresses"`
	} `json:"scriptPubKey"`
}

// Address returns the first address of the output script, or "".
func (o RawOutput) Address() string {
	if len(o.ScriptPubKey.Addresses) == 0 {
		return ""
	}
	return o.ScriptPubKey.Addresses[0]
}

// RawTx is a transaction record as reported by the node.
type RawTx struct {
	TxID          string          `json:"txid"`
	Vin           []RawInput      `json:"vin"`
	Vout          []RawOutput     `json:"vout"`
	Confirmations uint32          `json:"confirmations"`
	Fees          decimal.Decimal `json:"fees"`
	Time          int64           `json:"time"`
}

// Client talks to one node API for one network.
type Client struct {
	transport *chain.Transport
	net       *btc.Network
}

// New returns a Client using transport for requests.
func New(transport *chain.Transport, net *btc.Network) *Client {
	return &Client{transport: transport, net: net}
}

type addressInfoReply struct {
	Address                 string          `json:"addrStr"`
	Balance                 decimal.Decimal `json:"balance"`
	UnconfirmedBalance      decimal.Decimal `json:"unconfirmedBalance"`
	TxAppearances           int             `json:"txApperances"`
	UnconfirmedTxAppearance int             `json:"unconfirmedTxApperances"`
	Transactions            []string        `json:"transactions"`
}

// AddressInfo returns usage info for addresses, in request order.
func (c *Client) AddressInfo(ctx context.Context, addresses []string) ([]AddressInfo, error) {
	var out []AddressInfo
	err := chunked(addresses, func(part []string) error {
		var reply []addressInfoReply
		if err := c.transport.GetJSON(ctx, "api/v1/addrs/"+strings.Join(part, ","), nil, &reply); err != nil {
			return err
		}
		for _, r := range reply {
			out = append(out, AddressInfo{
				Address: r.Address,
				Balance: chain.WholeUnitsToSats(r.Balance.Add(r.UnconfirmedBalance)),
				TxCount: r.TxAppearances + r.UnconfirmedTxAppearance,
				TxIDs:   r.Transactions,
			})
		}
		return nil
	})
	return out, err
}

type unspentReply struct {
	Address       string `json:"address"`
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Satoshis      uint64 `json:"satoshis"`
	Confirmations uint32 `json:"confirmations"`
	Coinbase      bool   `json:"coinbase"`
}

// Unspents returns the unspent outputs of addresses. The address type of
// each unspent is decoded against the client's network.
func (c *Client) Unspents(ctx context.Context, addresses []string) ([]btc.Unspent, error) {
	var out []btc.Unspent
	err := chunked(addresses, func(part []string) error {
		var reply []unspentReply
		if err := c.transport.GetJSON(ctx, "api/v1/addrs/"+strings.Join(part, ",")+"/utxo", nil, &reply); err != nil {
			return err
		}
		for _, r := range reply {
			out = append(out, btc.Unspent{
				Address:       r.Address,
				Type:          btc.TypeOf(r.Address, c.net),
				Confirmations: r.Confirmations,
				TxID:          r.TxID,
				Vout:          r.Vout,
				Value:         r.Satoshis,
				Coinbase:      r.Coinbase,
			})
		}
		return nil
	})
	return out, err
}

// Confirmations returns the confirmation state of txIDs.
func (c *Client) Confirmations(ctx context.Context, txIDs []string) ([]Confirmation, error) {
	var out []Confirmation
	err := chunked(txIDs, func(part []string) error {
		var reply []Confirmation
		if err := c.transport.GetJSON(ctx, "api/v1/txs/"+strings.Join(part, ",")+"/confirmations", nil, &reply); err != nil {
			return err
		}
		out = append(out, reply...)
		return nil
	})
	return out, err
}

// SortedTxIDs orders txIDs for history display: unconfirmed first, newest
// first among them, then by confirmations ascending.
func (c *Client) SortedTxIDs(ctx context.Context, txIDs []string) ([]string, error) {
	confs, err := c.Confirmations(ctx, txIDs)
	if err != nil {
		return nil, err
	}
	SortConfirmations(confs)
	ids := make([]string, len(confs))
	for i, cf := range confs {
		ids[i] = cf.TxID
	}
	return ids, nil
}

// SortConfirmations sorts in history order, stable for ties.
func SortConfirmations(confs []Confirmation) {
	sort.SliceStable(confs, func(i, j int) bool {
		a, b := confs[i], confs[j]
		if a.Confirmations == 0 && b.Confirmations == 0 {
			return a.Time > b.Time
		}
		return a.Confirmations < b.Confirmations
	})
}

// Transactions returns full records for txIDs.
func (c *Client) Transactions(ctx context.Context, txIDs []string) ([]RawTx, error) {
	var out []RawTx
	err := chunked(txIDs, func(part []string) error {
		var reply []RawTx
		if err := c.transport.GetJSON(ctx, "api/v1/txs/"+strings.Join(part, ","), nil, &reply); err != nil {
			return err
		}
		out = append(out, reply...)
		return nil
	})
	return out, err
}

// Broadcast submits a signed transaction and returns the txid the node
// reports. A 4xx reply means the node refused the transaction.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	var reply struct {
		TxID string `json:"txid"`
	}
	err := c.transport.PostJSON(ctx, "api/v1/tx/send", map[string]string{"rawtx": rawHex}, &reply)
	if err != nil {
		var status *chain.StatusError
		if errors.As(err, &status) && status.Status >= http.StatusBadRequest && status.Status < http.StatusInternalServerError {
			return "", walleterr.WithDetails(walleterr.ErrTxRejected, map[string]string{
				"status": fmt.Sprint(status.Status),
				"reason": status.Body,
			})
		}
		return "", err
	}
	return reply.TxID, nil
}

// chunked calls fn for consecutive slices of at most ChunkSize items.
// An empty list makes no calls.
func chunked(items []string, fn func([]string) error) error {
	for start := 0; start < len(items); start += ChunkSize {
		end := start + ChunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

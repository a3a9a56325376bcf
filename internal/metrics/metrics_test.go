package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walleterr "github.com/CoinSpace/cs-bitcoin-wallet/pkg/errors"
)

// value returns the counter or gauge value of the first series of name
// whose labels include all of want.
func value(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, s := range f.GetMetric() {
			labels := make(map[string]string)
			for _, l := range s.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			if s.GetCounter() != nil {
				return s.GetCounter().GetValue()
			}
			if s.GetHistogram() != nil {
				return float64(s.GetHistogram().GetSampleCount())
			}
			return s.GetGauge().GetValue()
		}
	}
	return 0
}

func TestObserveRequest(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveRequest("api/v1/addrs", 100*time.Millisecond, nil)
	m.ObserveRequest("api/v1/addrs", 50*time.Millisecond, walleterr.ErrNetworkError)
	m.ObserveRequest("api/v1/txs", time.Millisecond, nil)

	addrs := map[string]string{"endpoint": "api/v1/addrs"}
	assert.InDelta(t, 2.0, value(t, m, "cswallet_indexer_requests_total", addrs), 0.001)
	assert.InDelta(t, 1.0, value(t, m, "cswallet_indexer_request_failures_total", addrs), 0.001)
	assert.InDelta(t, 2.0, value(t, m, "cswallet_indexer_request_seconds", addrs), 0.001)
	assert.InDelta(t, 1.0, value(t, m, "cswallet_indexer_requests_total", map[string]string{"endpoint": "api/v1/txs"}), 0.001)
}

func TestObserveDiscoveryRound(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveDiscoveryRound("p2wpkh", "external", 3, 3)
	m.ObserveDiscoveryRound("p2wpkh", "external", 4, 1)
	m.ObserveDiscoveryRound("p2wpkh", "internal", 3, 0)

	ext := map[string]string{"address_type": "p2wpkh", "branch": "external"}
	assert.InDelta(t, 2.0, value(t, m, "cswallet_discovery_rounds_total", ext), 0.001)
	assert.InDelta(t, 4.0, value(t, m, "cswallet_discovery_used_addresses_total", ext), 0.001)
}

func TestBroadcastCommitBalance(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordBroadcast(nil)
	m.RecordBroadcast(walleterr.ErrTxRejected)
	m.RecordCommit("send")
	m.RecordCommit("send")
	m.SetBalance(49_632_908)

	assert.InDelta(t, 1.0, value(t, m, "cswallet_broadcasts_total", map[string]string{"result": "accepted"}), 0.001)
	assert.InDelta(t, 1.0, value(t, m, "cswallet_broadcasts_total", map[string]string{"result": "failed"}), 0.001)
	assert.InDelta(t, 2.0, value(t, m, "cswallet_commits_total", map[string]string{"kind": "send"}), 0.001)
	assert.InDelta(t, 49_632_908.0, value(t, m, "cswallet_balance_sats", nil), 0.001)
}

func TestDump(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetBalance(1)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	assert.Contains(t, buf.String(), "cswallet_balance_sats")
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.RecordCommit("import")

	assert.InDelta(t, 1.0, value(t, a, "cswallet_commits_total", nil), 0.001)
	assert.InDelta(t, 0.0, value(t, b, "cswallet_commits_total", nil), 0.001)
}

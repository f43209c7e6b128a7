package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Deposit("swap")
	m.Rejected("not_ready")
	m.Payout("failed")
	m.StaleResponse("a")
	m.UnmatchedResponse()
	m.SetSync("a", 4, time.Time{})
	m.SetMirrored("a", uint256.NewInt(1))
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Deposit("swap")
	m.Deposit("swap")
	m.Rejected("not_ready")
	m.SetSync("token-a", 3, time.Unix(1_700_000_000, 0))
	m.SetMirrored("token-a", uint256.NewInt(900))

	require.Equal(t, 2.0, testutil.ToFloat64(m.deposits.WithLabelValues("swap")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("not_ready")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.syncState.WithLabelValues("token-a")))
	require.Equal(t, 1_700_000_000.0, testutil.ToFloat64(m.pendingSince.WithLabelValues("token-a")))
	require.Equal(t, 900.0, testutil.ToFloat64(m.mirrored.WithLabelValues("token-a")))

	_, err = New(reg)
	require.Error(t, err)
}

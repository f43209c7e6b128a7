package metrics

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pool"

// Metrics holds pool collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	deposits       *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	payouts        *prometheus.CounterVec
	staleResponses *prometheus.CounterVec
	unmatched      prometheus.Counter
	syncState      *prometheus.GaugeVec
	pendingSince   *prometheus.GaugeVec
	mirrored       *prometheus.GaugeVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_total",
			Help:      "number of settled deposits by kind",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "number of rejected calls by reason",
		}, []string{"reason"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "number of swap payouts by outcome",
		}, []string{"status"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_balance_responses_total",
			Help:      "balance responses that overrode local mirror mutations",
		}, []string{"asset"}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_responses_total",
			Help:      "ledger responses without a registered continuation",
		}),
		syncState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_state",
			Help:      "asset sync state (0 uninitialized .. 4 ready)",
		}, []string{"asset"}),
		pendingSince: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_pending_since_seconds",
			Help:      "unix time the current pending sync request was issued, 0 when idle",
		}, []string{"asset"}),
		mirrored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mirrored_balance",
			Help:      "mirrored reserve balance in ledger-native units",
		}, []string{"asset"}),
	}

	collectors := []prometheus.Collector{
		m.deposits,
		m.rejections,
		m.payouts,
		m.staleResponses,
		m.unmatched,
		m.syncState,
		m.pendingSince,
		m.mirrored,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Deposit(kind string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(kind).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Payout(status string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(status).Inc()
}

func (m *Metrics) StaleResponse(asset string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(asset).Inc()
}

func (m *Metrics) UnmatchedResponse() {
	if m == nil {
		return
	}
	m.unmatched.Inc()
}

// SetSync records the sync state and, for pending states, when the request went out.
func (m *Metrics) SetSync(asset string, state int, pendingSince time.Time) {
	if m == nil {
		return
	}
	m.syncState.WithLabelValues(asset).Set(float64(state))
	if pendingSince.IsZero() {
		m.pendingSince.WithLabelValues(asset).Set(0)
		return
	}
	m.pendingSince.WithLabelValues(asset).Set(float64(pendingSince.Unix()))
}

func (m *Metrics) SetMirrored(asset string, balance *uint256.Int) {
	if m == nil || balance == nil {
		return
	}
	f, _ := new(big.Float).SetInt(balance.ToBig()).Float64()
	m.mirrored.WithLabelValues(asset).Set(f)
}

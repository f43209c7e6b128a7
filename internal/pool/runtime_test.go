package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/ledger/memledger"
	"pairPool/internal/model"
)

type memSink struct {
	mu          sync.Mutex
	settlements map[string]model.Settlement
	snapshots   int
	last        model.PoolSnapshot
}

func (s *memSink) PutSettlements(_ context.Context, settlements []model.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settlements == nil {
		s.settlements = make(map[string]model.Settlement)
	}
	for _, st := range settlements {
		s.settlements[st.ID] = st
	}
	return nil
}

func (s *memSink) Save(_ context.Context, snap model.PoolSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	s.last = snap
	return nil
}

func (s *memSink) payoutStatuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, st := range s.settlements {
		out = append(out, st.PayoutStatus)
	}
	return out
}

func TestRuntimeSettlesConcurrentLedgers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := memledger.New(model.AssetMeta{Asset: assetA, Decimals: 24, Symbol: "TKA", Name: "Token A"})
	b := memledger.New(model.AssetMeta{Asset: assetB, Decimals: 24, Symbol: "TKB", Name: "Token B"})
	a.Mint(self, uint256.NewInt(900))
	b.Mint(self, uint256.NewInt(300))
	a.Mint(alice, uint256.NewInt(100))
	b.Register(alice)

	p := New(Config{Self: self}, map[model.AssetID]ledger.Ledger{
		assetA: a.Client(self),
		assetB: b.Client(self),
	}, zap.NewNop())
	sink := &memSink{}
	rt := NewRuntime(p, RuntimeConfig{Settlements: sink, Snapshots: sink}, zap.NewNop())

	errc := make(chan error, 1)
	go func() { errc <- rt.Run(ctx) }()

	require.NoError(t, rt.Initialize(ctx, owner, assetA, assetB))
	require.Eventually(t, func() bool {
		snap, err := rt.Describe(ctx)
		return err == nil && snap.Assets[0].SyncState == "ready" && snap.Assets[1].SyncState == "ready"
	}, 5*time.Second, 10*time.Millisecond)

	out, err := rt.Quote(ctx, assetA, assetB, uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, "30", out.Dec())

	kept, err := a.TransferCall(alice, self, uint256.NewInt(100), "", func(n model.DepositNotification) (*uint256.Int, error) {
		return rt.OnDeposit(ctx, n)
	})
	require.NoError(t, err)
	require.Equal(t, "100", kept.Dec())

	require.Eventually(t, func() bool {
		return b.BalanceOf(alice).Eq(uint256.NewInt(30))
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		statuses := sink.payoutStatuses()
		return len(statuses) == 1 && statuses[0] == model.PayoutConfirmed
	}, 5*time.Second, 10*time.Millisecond)

	stalled, err := rt.Stalled(ctx, time.Hour)
	require.NoError(t, err)
	require.Empty(t, stalled)

	sink.mu.Lock()
	require.Positive(t, sink.snapshots)
	require.Equal(t, "270", sink.last.Assets[1].MirroredBalance)
	sink.mu.Unlock()

	require.ErrorIs(t, rt.RetrySync(ctx, alice, assetA), ErrUnauthorized)

	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)
	a.Wait()
	b.Wait()

	_, err = rt.Describe(context.Background())
	require.ErrorIs(t, err, ErrStopped)
}

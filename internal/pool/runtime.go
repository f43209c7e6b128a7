package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/model"
)

// ErrStopped is returned by Runtime calls once Run has returned.
var ErrStopped = errors.New("pool runtime stopped")

// SettlementSink persists settlements. The same settlement may be written
// more than once as its payout status changes.
type SettlementSink interface {
	PutSettlements(ctx context.Context, settlements []model.Settlement) error
}

// SnapshotSink persists pool snapshots.
type SnapshotSink interface {
	Save(ctx context.Context, snap model.PoolSnapshot) error
}

type RuntimeConfig struct {
	Settlements SettlementSink
	Snapshots   SnapshotSink
	QueueSize   int
}

// Runtime owns a Pool and runs every call and ledger response against it on a
// single goroutine, one at a time.
type Runtime struct {
	pool   *Pool
	cfg    RuntimeConfig
	logger *zap.Logger

	calls   chan runtimeCall
	stopped chan struct{}

	mu        sync.Mutex
	responses []ledger.Response
	notify    chan struct{}
}

type runtimeCall struct {
	fn   func(context.Context, *Pool)
	done chan struct{}
}

// NewRuntime takes ownership of p. p must not be used directly afterwards.
func NewRuntime(p *Pool, cfg RuntimeConfig, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	r := &Runtime{
		pool:    p,
		cfg:     cfg,
		logger:  logger,
		calls:   make(chan runtimeCall, cfg.QueueSize),
		stopped: make(chan struct{}),
		notify:  make(chan struct{}, 1),
	}
	p.deliver = r.enqueue
	return r
}

// enqueue never blocks; ledgers may call it from any goroutine.
func (r *Runtime) enqueue(resp ledger.Response) {
	r.mu.Lock()
	r.responses = append(r.responses, resp)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Runtime) drain() []ledger.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.responses
	r.responses = nil
	return out
}

// Run processes calls and responses until ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.stopped)
	r.logger.Info("pool runtime started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pool runtime stopped", zap.Int("pending_requests", r.pool.PendingRequests()))
			return ctx.Err()
		case c := <-r.calls:
			c.fn(ctx, r.pool)
			r.persist(ctx)
			close(c.done)
		case <-r.notify:
			for _, resp := range r.drain() {
				r.pool.HandleResponse(ctx, resp)
				r.persist(ctx)
			}
		}
	}
}

// Do runs fn on the runtime goroutine and waits for it to finish.
func (r *Runtime) Do(ctx context.Context, fn func(context.Context, *Pool)) error {
	c := runtimeCall{fn: fn, done: make(chan struct{})}
	select {
	case r.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrStopped
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrStopped
	}
}

func (r *Runtime) persist(ctx context.Context) {
	if settlements := r.pool.takeSettlements(); len(settlements) > 0 && r.cfg.Settlements != nil {
		if err := r.cfg.Settlements.PutSettlements(ctx, settlements); err != nil {
			r.logger.Error("persist settlements failed", zap.Int("count", len(settlements)), zap.Error(err))
		}
	}
	if r.pool.takeDirty() && r.cfg.Snapshots != nil {
		if err := r.cfg.Snapshots.Save(ctx, r.pool.Describe()); err != nil {
			r.logger.Error("persist snapshot failed", zap.Error(err))
		}
	}
}

func (r *Runtime) Initialize(ctx context.Context, owner model.AccountID, a, b model.AssetID) error {
	var err error
	if doErr := r.Do(ctx, func(ctx context.Context, p *Pool) {
		err = p.Initialize(ctx, owner, a, b)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (r *Runtime) OnDeposit(ctx context.Context, n model.DepositNotification) (*uint256.Int, error) {
	var (
		refund *uint256.Int
		err    error
	)
	if doErr := r.Do(ctx, func(ctx context.Context, p *Pool) {
		refund, err = p.OnDeposit(ctx, n)
	}); doErr != nil {
		return nil, doErr
	}
	return refund, err
}

func (r *Runtime) Quote(ctx context.Context, sell, buy model.AssetID, amount *uint256.Int) (*uint256.Int, error) {
	var (
		out *uint256.Int
		err error
	)
	if doErr := r.Do(ctx, func(_ context.Context, p *Pool) {
		out, err = p.Quote(sell, buy, amount)
	}); doErr != nil {
		return nil, doErr
	}
	return out, err
}

func (r *Runtime) Describe(ctx context.Context) (model.PoolSnapshot, error) {
	var snap model.PoolSnapshot
	err := r.Do(ctx, func(_ context.Context, p *Pool) {
		snap = p.Describe()
	})
	return snap, err
}

func (r *Runtime) Stalled(ctx context.Context, after time.Duration) ([]error, error) {
	var stalled []error
	err := r.Do(ctx, func(_ context.Context, p *Pool) {
		stalled = p.Stalled(after)
	})
	return stalled, err
}

func (r *Runtime) RetrySync(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
	var err error
	if doErr := r.Do(ctx, func(ctx context.Context, p *Pool) {
		err = p.RetrySync(ctx, caller, asset)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (r *Runtime) RefreshBalance(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
	var err error
	if doErr := r.Do(ctx, func(ctx context.Context, p *Pool) {
		err = p.RefreshBalance(ctx, caller, asset)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (r *Runtime) ProvisionHolder(ctx context.Context, caller model.AccountID, asset model.AssetID, holder model.AccountID) error {
	var err error
	if doErr := r.Do(ctx, func(ctx context.Context, p *Pool) {
		err = p.ProvisionHolder(ctx, caller, asset, holder)
	}); doErr != nil {
		return doErr
	}
	return err
}

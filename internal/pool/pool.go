package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/metrics"
	"pairPool/internal/model"
)

// Config tunes a Pool.
type Config struct {
	// Self is the pool's holder identity on both asset ledgers.
	Self model.AccountID
	// RefreshAfterDeposit requests a balance query after every owner deposit.
	RefreshAfterDeposit bool
	Metrics             *metrics.Metrics
	Now                 func() time.Time
	NewID               func() string
}

// Pool is the two-asset reserve. It is not safe for concurrent use; Runtime
// serializes every call onto one goroutine.
type Pool struct {
	cfg     Config
	state   State
	ledgers map[model.AssetID]ledger.Ledger
	pending map[string]*pendingCall
	deliver ledger.Reply
	logger  *zap.Logger
	metrics *metrics.Metrics

	journal []model.Settlement
	dirty   bool
	// sources holds every chain log already passed to OnDeposit.
	sources map[model.LogRef]struct{}
}

type pendingCall struct {
	kind     ledger.Kind
	asset    model.AssetID
	issuedAt time.Time
	cont     func(context.Context, ledger.Response)
}

// New creates an uninitialized pool over the given asset ledgers.
func New(cfg Config, ledgers map[model.AssetID]ledger.Ledger, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	p := &Pool{
		cfg:     cfg,
		ledgers: ledgers,
		pending: make(map[string]*pendingCall),
		sources: make(map[model.LogRef]struct{}),
		logger:  logger,
		metrics: cfg.Metrics,
	}
	p.state.Self = cfg.Self
	p.state.K = new(uint256.Int)
	p.deliver = func(resp ledger.Response) {
		p.HandleResponse(context.Background(), resp)
	}
	return p
}

// Initialize fixes the owner and the asset pair and starts the sync bootstrap
// of both assets. It can only succeed once.
func (p *Pool) Initialize(ctx context.Context, owner model.AccountID, a, b model.AssetID) error {
	if p.state.Initialized {
		return ErrAlreadyInitialized
	}
	if owner == "" {
		return fmt.Errorf("owner is required")
	}
	if a == b {
		return fmt.Errorf("initialize %s/%s: %w", a, b, ErrSameAsset)
	}
	for _, id := range []model.AssetID{a, b} {
		if _, ok := p.ledgers[id]; !ok {
			return fmt.Errorf("initialize %s: %w", id, ErrUnsupportedAsset)
		}
	}

	p.state.Owner = owner
	p.state.Assets = [2]*AssetEntry{newAssetEntry(a), newAssetEntry(b)}
	p.state.Initialized = true
	p.dirty = true

	p.logger.Info("pool initialized",
		zap.String("owner", string(owner)),
		zap.String("asset_a", string(a)),
		zap.String("asset_b", string(b)),
	)
	for _, e := range p.state.Assets {
		p.bootstrap(ctx, e)
	}
	return nil
}

// Describe returns a snapshot of the pool. It never mutates state.
func (p *Pool) Describe() model.PoolSnapshot {
	snap := model.PoolSnapshot{
		Owner:       string(p.state.Owner),
		Self:        string(p.state.Self),
		Initialized: p.state.Initialized,
		InvariantK:  p.state.K.Dec(),
		Ticker:      p.state.Ticker.snapshot(),
		TakenAt:     p.cfg.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range p.state.Assets {
		if e == nil {
			continue
		}
		as := model.AssetSnapshot{
			Asset:           string(e.LedgerID),
			DisplayName:     e.DisplayName,
			Symbol:          e.Symbol,
			Decimals:        e.Decimals,
			MirroredBalance: e.Mirrored.Dec(),
			SyncState:       e.Sync.String(),
		}
		if !e.PendingSince.IsZero() {
			as.PendingSince = e.PendingSince.UTC().Format(time.RFC3339)
		}
		if e.LastErr != nil {
			as.LastError = e.LastErr.Error()
		}
		if e.LastDrift != nil {
			drift := *e.LastDrift
			as.LastDrift = &drift
		}
		snap.Assets = append(snap.Assets, as)
	}
	return snap
}

// Entry returns a copy of the named asset entry.
func (p *Pool) Entry(id model.AssetID) (AssetEntry, bool) {
	e, ok := p.state.entry(id)
	if !ok {
		return AssetEntry{}, false
	}
	out := *e
	out.Mirrored = e.Mirrored.Clone()
	return out, true
}

// K returns the cached product of both mirrored balances.
func (p *Pool) K() *uint256.Int {
	return p.state.K.Clone()
}

// Stalled reports every asset whose sync request has been pending for longer
// than after. Each returned error wraps ErrStalled.
func (p *Pool) Stalled(after time.Duration) []error {
	now := p.cfg.Now()
	var out []error
	for _, e := range p.state.Assets {
		if e == nil || !e.Sync.pending() || e.PendingSince.IsZero() {
			continue
		}
		if age := now.Sub(e.PendingSince); age > after {
			out = append(out, fmt.Errorf("%s %s for %s: %w", e.LedgerID, e.Sync, age.Truncate(time.Second), ErrStalled))
		}
	}
	return out
}

// PendingRequests reports how many ledger requests await a response.
func (p *Pool) PendingRequests() int {
	return len(p.pending)
}

// takeSettlements returns settlements created or updated since the last call.
func (p *Pool) takeSettlements() []model.Settlement {
	out := p.journal
	p.journal = nil
	return out
}

// takeDirty reports whether state changed since the last call.
func (p *Pool) takeDirty() bool {
	dirty := p.dirty
	p.dirty = false
	return dirty
}

func (p *Pool) record(s *model.Settlement) {
	p.journal = append(p.journal, *s)
}

func (p *Pool) now() string {
	return p.cfg.Now().UTC().Format(time.RFC3339Nano)
}

func (p *Pool) requireOwner(caller model.AccountID) error {
	if !p.state.Initialized {
		return ErrNotInitialized
	}
	if caller != p.state.Owner {
		return fmt.Errorf("%s: %w", caller, ErrUnauthorized)
	}
	return nil
}

package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/model"
	"pairPool/internal/swap"
)

// bootstrap runs provision storage -> fetch metadata -> fetch balance for one
// asset. The asset is MetadataPending until the metadata response arrives.
func (p *Pool) bootstrap(ctx context.Context, e *AssetEntry) {
	e.LastErr = nil
	p.setSync(e, MetadataPending)

	req := ledger.Request{Kind: ledger.KindProvision, Holder: p.state.Self}
	if _, err := p.issue(ctx, e.LedgerID, req, p.onProvisioned(e)); err != nil {
		p.failSync(e, err)
	}
}

func (p *Pool) onProvisioned(e *AssetEntry) func(context.Context, ledger.Response) {
	return func(ctx context.Context, resp ledger.Response) {
		if resp.Err != nil && !errors.Is(resp.Err, ledger.ErrAlreadyProvisioned) {
			p.failSync(e, fmt.Errorf("provision storage: %w", resp.Err))
			return
		}
		req := ledger.Request{Kind: ledger.KindMetadata}
		if _, err := p.issue(ctx, e.LedgerID, req, p.onMetadata(e)); err != nil {
			p.failSync(e, err)
		}
	}
}

func (p *Pool) onMetadata(e *AssetEntry) func(context.Context, ledger.Response) {
	return func(ctx context.Context, resp ledger.Response) {
		if resp.Err != nil {
			p.failSync(e, fmt.Errorf("query metadata: %w", resp.Err))
			return
		}
		if resp.Metadata == nil {
			p.failSync(e, fmt.Errorf("query metadata: empty response"))
			return
		}

		meta := resp.Metadata
		e.DisplayName = meta.Name
		e.Symbol = meta.Symbol
		e.Decimals = meta.Decimals
		e.hasMeta = true
		p.setMirrored(e, new(uint256.Int))
		p.recomputeK()
		p.setSync(e, MetadataReady)

		p.logger.Info("asset metadata captured",
			zap.String("asset", string(e.LedgerID)),
			zap.String("symbol", e.Symbol),
			zap.Uint8("decimals", e.Decimals),
		)
		if err := p.requestBalance(ctx, e); err != nil {
			p.failSync(e, err)
		}
	}
}

func (p *Pool) requestBalance(ctx context.Context, e *AssetEntry) error {
	p.setSync(e, BalancePending)
	req := ledger.Request{Kind: ledger.KindBalance, Holder: p.state.Self}
	_, err := p.issue(ctx, e.LedgerID, req, nil)
	return err
}

// onBalance applies a reported balance. Responses win in arrival order, even
// over swaps committed after the query went out; such overrides are recorded
// as drift.
func (p *Pool) onBalance(e *AssetEntry, seq uint64) func(context.Context, ledger.Response) {
	return func(_ context.Context, resp ledger.Response) {
		if resp.Err != nil {
			p.failSync(e, fmt.Errorf("query balance: %w", resp.Err))
			return
		}
		if resp.Balance == nil {
			p.failSync(e, fmt.Errorf("query balance: empty response"))
			return
		}
		if resp.Balance.Gt(swap.MaxBalance) {
			p.failSync(e, fmt.Errorf("query balance: %s exceeds ledger width", resp.Balance.Dec()))
			return
		}

		if seq != e.seq && !resp.Balance.Eq(e.Mirrored) {
			e.LastDrift = &model.Drift{
				Mirrored:   e.Mirrored.Dec(),
				Reported:   resp.Balance.Dec(),
				ObservedAt: p.now(),
			}
			p.metrics.StaleResponse(string(e.LedgerID))
			p.logger.Warn("stale balance response overrides local mirror",
				zap.String("asset", string(e.LedgerID)),
				zap.String("mirrored", e.LastDrift.Mirrored),
				zap.String("reported", e.LastDrift.Reported),
				zap.Uint64("mutations_since_query", e.seq-seq),
			)
		}

		p.setMirrored(e, resp.Balance)
		p.setSync(e, Ready)
		p.recomputeK()
	}
}

// failSync parks the asset in Uninitialized and cancels its outstanding sync
// requests. Payouts in flight are left alone.
func (p *Pool) failSync(e *AssetEntry, err error) {
	e.LastErr = fmt.Errorf("%w: %w", ErrExternalCallFailed, err)
	for id, call := range p.pending {
		if call.asset == e.LedgerID && call.kind != ledger.KindTransfer {
			delete(p.pending, id)
		}
	}
	p.setSync(e, Uninitialized)
	p.logger.Error("asset sync failed",
		zap.String("asset", string(e.LedgerID)),
		zap.Error(err),
	)
}

func (p *Pool) setSync(e *AssetEntry, s SyncState) {
	e.Sync = s
	if s.pending() {
		e.PendingSince = p.cfg.Now()
	} else {
		e.PendingSince = time.Time{}
	}
	p.metrics.SetSync(string(e.LedgerID), int(s), e.PendingSince)
	p.dirty = true
}

// issue registers a continuation under a fresh request id and submits the
// request. Balance queries resolve through onBalance when cont is nil.
func (p *Pool) issue(ctx context.Context, asset model.AssetID, req ledger.Request, cont func(context.Context, ledger.Response)) (string, error) {
	l, ok := p.ledgers[asset]
	if !ok {
		return "", fmt.Errorf("%s: %w", asset, ErrUnsupportedAsset)
	}
	req.ID = p.cfg.NewID()
	req.Asset = asset

	call := &pendingCall{kind: req.Kind, asset: asset, issuedAt: p.cfg.Now(), cont: cont}
	if req.Kind == ledger.KindBalance && cont == nil {
		if e, ok := p.state.entry(asset); ok {
			call.cont = p.onBalance(e, e.seq)
		}
	}
	p.pending[req.ID] = call

	if err := submit(ctx, l, req, p.reply); err != nil {
		delete(p.pending, req.ID)
		return "", fmt.Errorf("submit %s to %s: %w", req.Kind, asset, err)
	}
	p.logger.Debug("ledger request issued",
		zap.String("request_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("asset", string(asset)),
	)
	return req.ID, nil
}

func (p *Pool) reply(resp ledger.Response) {
	p.deliver(resp)
}

func submit(ctx context.Context, l ledger.Ledger, req ledger.Request, reply ledger.Reply) error {
	switch req.Kind {
	case ledger.KindProvision:
		return l.ProvisionStorage(ctx, req, reply)
	case ledger.KindMetadata:
		return l.QueryMetadata(ctx, req, reply)
	case ledger.KindBalance:
		return l.QueryBalance(ctx, req, reply)
	case ledger.KindTransfer:
		return l.Transfer(ctx, req, reply)
	default:
		return fmt.Errorf("unknown request kind %q", req.Kind)
	}
}

// HandleResponse resumes the continuation registered for resp.RequestID.
// Responses without one (never issued, or cancelled by a failed sync) are dropped.
func (p *Pool) HandleResponse(ctx context.Context, resp ledger.Response) {
	call, ok := p.pending[resp.RequestID]
	if !ok {
		p.metrics.UnmatchedResponse()
		p.logger.Warn("dropping unmatched ledger response",
			zap.String("request_id", resp.RequestID),
			zap.String("kind", string(resp.Kind)),
			zap.String("asset", string(resp.Asset)),
		)
		return
	}
	delete(p.pending, resp.RequestID)

	if (resp.Kind != "" && resp.Kind != call.kind) || (resp.Asset != "" && resp.Asset != call.asset) {
		p.logger.Error("ledger response does not match its request",
			zap.String("request_id", resp.RequestID),
			zap.String("want_kind", string(call.kind)),
			zap.String("got_kind", string(resp.Kind)),
		)
		resp = ledger.Response{
			RequestID: resp.RequestID,
			Kind:      call.kind,
			Asset:     call.asset,
			Err:       fmt.Errorf("response %s/%s for %s/%s request", resp.Kind, resp.Asset, call.kind, call.asset),
		}
	}
	call.cont(ctx, resp)
}

// RetrySync restarts the bootstrap of an asset parked in Uninitialized.
func (p *Pool) RetrySync(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	e, ok := p.state.entry(asset)
	if !ok {
		return fmt.Errorf("%s: %w", asset, ErrUnsupportedAsset)
	}
	if e.Sync != Uninitialized {
		return fmt.Errorf("%s is %s: %w", asset, e.Sync, ErrSyncInProgress)
	}
	p.logger.Info("retrying asset sync", zap.String("asset", string(asset)))
	p.bootstrap(ctx, e)
	if e.Sync == Uninitialized {
		return e.LastErr
	}
	return nil
}

// RefreshBalance re-reads the pool's balance of asset from its ledger.
func (p *Pool) RefreshBalance(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	e, ok := p.state.entry(asset)
	if !ok {
		return fmt.Errorf("%s: %w", asset, ErrUnsupportedAsset)
	}
	if e.Sync != Ready && e.Sync != BalancePending {
		return fmt.Errorf("%s is %s: %w", asset, e.Sync, ErrNotReady)
	}
	if err := p.requestBalance(ctx, e); err != nil {
		p.failSync(e, err)
		return e.LastErr
	}
	return nil
}

// ProvisionHolder registers storage for holder on the asset ledger so payouts
// to it can land. It does not touch the asset's sync state.
func (p *Pool) ProvisionHolder(ctx context.Context, caller model.AccountID, asset model.AssetID, holder model.AccountID) error {
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if _, ok := p.state.entry(asset); !ok {
		return fmt.Errorf("%s: %w", asset, ErrUnsupportedAsset)
	}
	if holder == "" {
		return fmt.Errorf("holder is required")
	}

	req := ledger.Request{Kind: ledger.KindProvision, Holder: holder}
	_, err := p.issue(ctx, asset, req, func(_ context.Context, resp ledger.Response) {
		if resp.Err != nil && !errors.Is(resp.Err, ledger.ErrAlreadyProvisioned) {
			p.logger.Warn("holder provisioning failed",
				zap.String("asset", string(asset)),
				zap.String("holder", string(holder)),
				zap.Error(resp.Err),
			)
			return
		}
		p.logger.Info("holder provisioned",
			zap.String("asset", string(asset)),
			zap.String("holder", string(holder)),
		)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExternalCallFailed, err)
	}
	return nil
}

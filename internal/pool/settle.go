package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/model"
	"pairPool/internal/swap"
)

// OnDeposit settles a transfer received by the pool and returns how much of it
// the notifying ledger must hand back to the sender: everything when the
// deposit is rejected, nothing otherwise. A notification whose Source was
// already seen is answered with ErrDuplicateDeposit and a zero refund, since
// the first delivery has already settled or refunded it.
func (p *Pool) OnDeposit(ctx context.Context, n model.DepositNotification) (*uint256.Int, error) {
	if n.Source != nil {
		if _, seen := p.sources[*n.Source]; seen {
			p.metrics.Rejected(Reason(ErrDuplicateDeposit))
			p.logger.Warn("duplicate deposit ignored",
				zap.String("asset", string(n.Asset)),
				zap.String("tx_hash", n.Source.TxHash),
				zap.Uint64("log_index", n.Source.LogIndex),
			)
			return new(uint256.Int), fmt.Errorf("%s#%d: %w", n.Source.TxHash, n.Source.LogIndex, ErrDuplicateDeposit)
		}
		p.sources[*n.Source] = struct{}{}
	}
	if err := p.settle(ctx, n); err != nil {
		refund := new(uint256.Int)
		if n.Amount != nil {
			refund.Set(n.Amount)
		}
		p.metrics.Rejected(Reason(err))
		p.logger.Warn("deposit rejected",
			zap.String("asset", string(n.Asset)),
			zap.String("sender", string(n.Sender)),
			zap.String("refund", refund.Dec()),
			zap.Error(err),
		)
		return refund, err
	}
	return new(uint256.Int), nil
}

func (p *Pool) settle(ctx context.Context, n model.DepositNotification) error {
	if !p.state.Initialized {
		return ErrNotInitialized
	}
	if n.Amount == nil || n.Amount.IsZero() {
		return ErrZeroAmount
	}
	msg, err := parseMessage(n)
	if err != nil {
		return err
	}
	if n.Sender == p.state.Owner {
		return p.addLiquidity(ctx, n)
	}
	return p.swap(ctx, msg, n)
}

func parseMessage(n model.DepositNotification) (model.DepositMessage, error) {
	var msg model.DepositMessage
	if raw := strings.TrimSpace(n.Message); raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
	}
	if msg.Sell == "" {
		msg.Sell = n.Asset
	}
	if msg.Sell != n.Asset {
		return msg, fmt.Errorf("%w: sell %s on %s ledger", ErrMalformedMessage, msg.Sell, n.Asset)
	}
	return msg, nil
}

// addLiquidity credits an owner deposit to the mirror. The mirror may be
// credited before the first balance response; that response later overrides it.
func (p *Pool) addLiquidity(ctx context.Context, n model.DepositNotification) error {
	e, ok := p.state.entry(n.Asset)
	if !ok {
		return fmt.Errorf("%s: %w", n.Asset, ErrUnsupportedAsset)
	}
	if !e.hasMeta || e.Sync == Uninitialized {
		return fmt.Errorf("%s is %s: %w", e.LedgerID, e.Sync, ErrNotReady)
	}
	next, err := creditBalance(e.Mirrored, n.Amount)
	if err != nil {
		return err
	}

	p.setMirrored(e, next)
	p.recomputeK()
	p.dirty = true

	ts := p.now()
	p.record(&model.Settlement{
		ID:           p.cfg.NewID(),
		Kind:         model.SettlementLiquidity,
		Sender:       string(n.Sender),
		SellAsset:    string(n.Asset),
		AmountIn:     n.Amount.Dec(),
		AmountOut:    "0",
		PayoutStatus: model.PayoutNone,
		Source:       n.Source,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
	p.metrics.Deposit(model.SettlementLiquidity)
	p.logger.Info("liquidity added",
		zap.String("asset", string(e.LedgerID)),
		zap.String("amount", n.Amount.Dec()),
		zap.String("mirrored", e.Mirrored.Dec()),
	)

	if p.cfg.RefreshAfterDeposit && (e.Sync == Ready || e.Sync == BalancePending) {
		if err := p.requestBalance(ctx, e); err != nil {
			p.failSync(e, err)
		}
	}
	return nil
}

func (p *Pool) swap(ctx context.Context, msg model.DepositMessage, n model.DepositNotification) error {
	sell, buy, err := p.resolvePair(msg.Sell, msg.Buy)
	if err != nil {
		return err
	}
	out, err := p.quote(sell, buy, n.Amount)
	if err != nil {
		return err
	}

	nextSell, err := creditBalance(sell.Mirrored, n.Amount)
	if err != nil {
		return err
	}
	nextBuy, err := debitBalance(buy.Mirrored, out)
	if err != nil {
		return err
	}
	if err := swap.CheckInvariant(sell.Mirrored, buy.Mirrored, n.Amount, out); err != nil {
		return invariantViolation("swap %s %s for %s: %v", n.Amount.Dec(), sell.LedgerID, buy.LedgerID, err)
	}

	p.setMirrored(sell, nextSell)
	p.setMirrored(buy, nextBuy)
	p.recomputeK()
	p.dirty = true

	ts := p.now()
	s := &model.Settlement{
		ID:           p.cfg.NewID(),
		Kind:         model.SettlementSwap,
		Sender:       string(n.Sender),
		SellAsset:    string(sell.LedgerID),
		BuyAsset:     string(buy.LedgerID),
		AmountIn:     n.Amount.Dec(),
		AmountOut:    out.Dec(),
		PayoutStatus: model.PayoutPending,
		Source:       n.Source,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	p.metrics.Deposit(model.SettlementSwap)
	p.logger.Info("swap settled",
		zap.String("settlement_id", s.ID),
		zap.String("sender", s.Sender),
		zap.String("sell", s.SellAsset),
		zap.String("buy", s.BuyAsset),
		zap.String("amount_in", s.AmountIn),
		zap.String("amount_out", s.AmountOut),
	)

	if out.IsZero() {
		s.PayoutStatus = model.PayoutNone
		p.record(s)
		return nil
	}
	p.record(s)
	p.payout(ctx, buy, n.Sender, out, s)
	return nil
}

// payout sends the buy leg of a swap. It is never retried or rolled back; a
// failure is journalled for reconciliation.
func (p *Pool) payout(ctx context.Context, buy *AssetEntry, to model.AccountID, amount *uint256.Int, s *model.Settlement) {
	req := ledger.Request{
		Kind:   ledger.KindTransfer,
		To:     to,
		Amount: amount.Clone(),
		Memo:   "swap " + s.ID,
	}
	_, err := p.issue(ctx, buy.LedgerID, req, func(_ context.Context, resp ledger.Response) {
		p.settlePayout(s, resp.Err)
	})
	if err != nil {
		p.settlePayout(s, err)
	}
}

func (p *Pool) settlePayout(s *model.Settlement, err error) {
	s.UpdatedAt = p.now()
	if err != nil {
		s.PayoutStatus = model.PayoutFailed
		s.PayoutError = fmt.Errorf("%w: %w", ErrExternalCallFailed, err).Error()
		p.logger.Error("swap payout failed, reconciliation required",
			zap.String("settlement_id", s.ID),
			zap.String("to", s.Sender),
			zap.String("asset", s.BuyAsset),
			zap.String("amount", s.AmountOut),
			zap.Error(err),
		)
	} else {
		s.PayoutStatus = model.PayoutConfirmed
	}
	p.metrics.Payout(s.PayoutStatus)
	p.record(s)
}

// Quote prices selling amount of sell for buy without touching state. An
// empty buy means the other pool asset.
func (p *Pool) Quote(sell, buy model.AssetID, amount *uint256.Int) (*uint256.Int, error) {
	if !p.state.Initialized {
		return nil, ErrNotInitialized
	}
	s, b, err := p.resolvePair(sell, buy)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	return p.quote(s, b, amount)
}

// resolvePair maps ids onto pool entries and requires both to be Ready.
func (p *Pool) resolvePair(sellID, buyID model.AssetID) (*AssetEntry, *AssetEntry, error) {
	sell, ok := p.state.entry(sellID)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", sellID, ErrUnsupportedAsset)
	}
	buy := p.state.other(sell)
	if buyID != "" {
		if buy, ok = p.state.entry(buyID); !ok {
			return nil, nil, fmt.Errorf("%s: %w", buyID, ErrUnsupportedAsset)
		}
	}
	if buy == sell {
		return nil, nil, fmt.Errorf("%s: %w", sellID, ErrSameAsset)
	}
	for _, e := range []*AssetEntry{sell, buy} {
		if e.Sync != Ready {
			return nil, nil, fmt.Errorf("%s is %s: %w", e.LedgerID, e.Sync, ErrNotReady)
		}
	}
	return sell, buy, nil
}

func (p *Pool) quote(sell, buy *AssetEntry, amount *uint256.Int) (*uint256.Int, error) {
	out, err := swap.Quote(
		swap.Leg{Asset: sell.LedgerID, Balance: sell.Mirrored, Decimals: sell.Decimals},
		swap.Leg{Asset: buy.LedgerID, Balance: buy.Mirrored, Decimals: buy.Decimals},
		amount,
	)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, swap.ErrEmptyReserve):
		return nil, fmt.Errorf("%s/%s: %w", sell.LedgerID, buy.LedgerID, ErrEmptyReserve)
	case errors.Is(err, swap.ErrSameAsset):
		return nil, fmt.Errorf("%s: %w", sell.LedgerID, ErrSameAsset)
	case errors.Is(err, swap.ErrOverflow):
		return nil, fmt.Errorf("price %s %s: %w", amount.Dec(), sell.LedgerID, ErrAmountOutOfRange)
	default:
		return nil, invariantViolation("price %s %s: %v", amount.Dec(), sell.LedgerID, err)
	}
}

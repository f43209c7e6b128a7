package watch

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/erc20"
	"pairPool/internal/ledger"
	"pairPool/internal/model"
	"pairPool/internal/retry"
)

// Chain is the slice of the chain client the watcher reads from.
type Chain interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// Depositor settles a deposit and returns the amount to refund.
type Depositor interface {
	OnDeposit(ctx context.Context, n model.DepositNotification) (*uint256.Int, error)
}

// Config holds watcher settings.
type Config struct {
	// Pool is the address deposits are sent to.
	Pool   common.Address
	Tokens []common.Address
	// StartBlock 0 without a checkpoint starts at the current confirmed head.
	StartBlock    uint64
	BatchSize     uint64
	Confirmations uint64
	PollInterval  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Watcher turns ERC20 Transfer logs into the pool into deposit notifications
// and refunds whatever the pool rejects.
type Watcher struct {
	cfg         Config
	chain       Chain
	pool        Depositor
	refunds     map[model.AssetID]ledger.Ledger
	checkpoints CheckpointStore
	logger      *zap.Logger

	chainID uint64
	next    uint64
	cursor  model.Cursor
	resumed bool
	// delivered holds 1 + the last block whose deposits were all delivered;
	// 0 means unknown. Read from ledger goroutines.
	delivered atomic.Uint64
}

// New builds a Watcher. refunds maps each token's asset id to the ledger used
// to pay rejected deposits back.
func New(cfg Config, chain Chain, pool Depositor, refunds map[model.AssetID]ledger.Ledger, checkpoints CheckpointStore, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Watcher{
		cfg:         cfg,
		chain:       chain,
		pool:        pool,
		refunds:     refunds,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Prepare(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("poll deposits failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prepare validates the config, loads the checkpoint and fixes the first
// block to scan. It runs once; Run and Poll call it when needed. Call it before
// the pool bootstraps so balance reads can be pinned to DeliveredThrough.
func (w *Watcher) Prepare(ctx context.Context) error {
	if w.chainID != 0 {
		return nil
	}
	if w.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if w.pool == nil {
		return fmt.Errorf("depositor is nil")
	}
	if w.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(w.cfg.Tokens) == 0 {
		return fmt.Errorf("at least one token is required")
	}

	chainID, err := w.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	next := w.cfg.StartBlock
	if w.checkpoints != nil {
		cursor, ok, err := w.checkpoints.Load(ctx)
		if err != nil {
			return err
		}
		if ok && cursor.Next() >= next {
			w.cursor, w.resumed = cursor, true
			next = cursor.Next()
			w.logger.Info("resume from checkpoint",
				zap.Uint64("last_processed", cursor.Block),
				zap.Bool("partial", cursor.Partial),
				zap.Uint64("last_log_index", cursor.LogIndex),
				zap.Uint64("from", next),
			)
		}
	}
	if next == 0 {
		latest, err := w.latestWithRetry(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		if latest >= w.cfg.Confirmations {
			next = latest - w.cfg.Confirmations
		}
	}

	w.chainID = chainID.Uint64()
	w.advance(next)
	return nil
}

// DeliveredThrough returns the last block whose deposits have all been handed
// to the pool, with no deposit of a later block delivered yet.
func (w *Watcher) DeliveredThrough() (uint64, bool) {
	n := w.delivered.Load()
	if n == 0 {
		return 0, false
	}
	return n - 1, true
}

// advance moves the scan position to next, the first block with logs not yet
// delivered.
func (w *Watcher) advance(next uint64) {
	w.next = next
	if next > 0 {
		w.delivered.Store(next)
	}
}

// Poll processes every confirmed block not yet seen.
func (w *Watcher) Poll(ctx context.Context) error {
	if err := w.Prepare(ctx); err != nil {
		return err
	}

	latest, err := w.latestWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if latest < w.cfg.Confirmations {
		return nil
	}
	to := latest - w.cfg.Confirmations
	if w.next > to {
		return nil
	}

	ranges, err := batches(w.next, to, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	topic, err := erc20.TransferTopic()
	if err != nil {
		return err
	}
	topics := [][]common.Hash{{topic}, nil, {common.BytesToHash(w.cfg.Pool.Bytes())}}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := w.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}
		sort.SliceStable(logs, func(i, j int) bool {
			if logs[i].BlockNumber != logs[j].BlockNumber {
				return logs[i].BlockNumber < logs[j].BlockNumber
			}
			return logs[i].Index < logs[j].Index
		})

		var deposits int
		for _, log := range logs {
			if log.Removed || (w.resumed && w.cursor.Covers(log.BlockNumber, uint64(log.Index))) {
				continue
			}
			// Deposits of earlier blocks are all in; this block is not yet.
			if log.BlockNumber > w.next {
				w.advance(log.BlockNumber)
			}
			delivered, err := w.handle(ctx, log)
			if err != nil {
				return err
			}
			if !delivered {
				continue
			}
			deposits++
			if err := w.commit(ctx, model.Cursor{Block: log.BlockNumber, LogIndex: uint64(log.Index), Partial: true}); err != nil {
				return err
			}
		}

		if err := w.commit(ctx, model.Cursor{Block: blockRange.To}); err != nil {
			return err
		}
		w.advance(blockRange.To + 1)
		w.logger.Debug("batch complete", zap.Int("deposits", deposits), zap.Stringer("range", blockRange))
	}
	return nil
}

// commit records progress in memory first so a failed save never causes a
// second delivery from this process.
func (w *Watcher) commit(ctx context.Context, cursor model.Cursor) error {
	w.cursor, w.resumed = cursor, true
	if w.checkpoints == nil {
		return nil
	}
	if err := w.checkpoints.Save(ctx, cursor); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// handle delivers one log to the pool and reports whether it was a deposit.
func (w *Watcher) handle(ctx context.Context, log types.Log) (bool, error) {
	event, err := erc20.DecodeTransfer(log)
	if err != nil {
		w.logger.Warn("skip undecodable transfer log", zap.String("tx_hash", log.TxHash.Hex()), zap.Uint("log_index", log.Index), zap.Error(err))
		return false, nil
	}
	if event.To != w.cfg.Pool || event.From == w.cfg.Pool {
		return false, nil
	}
	amount, overflow := uint256.FromBig(event.Value)
	if overflow {
		w.logger.Warn("skip transfer exceeding 256 bits", zap.String("tx_hash", log.TxHash.Hex()))
		return false, nil
	}

	n := model.DepositNotification{
		Asset:  erc20.AssetID(event.Token),
		Sender: erc20.AccountID(event.From),
		Amount: amount,
		Source: &model.LogRef{
			ChainID:     w.chainID,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash.Hex(),
			LogIndex:    uint64(log.Index),
		},
	}
	refund, err := w.pool.OnDeposit(ctx, n)
	if err != nil && refund == nil {
		// The pool never saw the deposit.
		return false, fmt.Errorf("deliver deposit %s: %w", log.TxHash.Hex(), err)
	}
	if err != nil {
		w.logger.Info("deposit not settled",
			zap.String("tx_hash", n.Source.TxHash),
			zap.Uint64("log_index", n.Source.LogIndex),
			zap.String("refund", refund.Dec()),
			zap.Error(err),
		)
	}
	if refund != nil && !refund.IsZero() {
		w.refund(ctx, n, refund)
	}
	return true, nil
}

func (w *Watcher) refund(ctx context.Context, n model.DepositNotification, amount *uint256.Int) {
	l, ok := w.refunds[n.Asset]
	if !ok {
		w.logger.Error("no ledger to refund deposit", zap.String("asset", string(n.Asset)), zap.String("sender", string(n.Sender)), zap.String("amount", amount.Dec()))
		return
	}
	req := ledger.Request{
		ID:     uuid.NewString(),
		Kind:   ledger.KindTransfer,
		Asset:  n.Asset,
		To:     n.Sender,
		Amount: amount.Clone(),
		Memo:   "refund " + n.Source.TxHash,
	}
	fields := []zap.Field{
		zap.String("request_id", req.ID),
		zap.String("asset", string(n.Asset)),
		zap.String("to", string(n.Sender)),
		zap.String("amount", amount.Dec()),
		zap.String("deposit_tx", n.Source.TxHash),
	}
	err := l.Transfer(ctx, req, func(resp ledger.Response) {
		if resp.Err != nil {
			w.logger.Error("refund failed, reconciliation required", append(fields, zap.Error(resp.Err))...)
			return
		}
		w.logger.Info("deposit refunded", fields...)
	})
	if err != nil {
		w.logger.Error("refund submission failed, reconciliation required", append(fields, zap.Error(err))...)
	}
}

func (w *Watcher) latestWithRetry(ctx context.Context) (uint64, error) {
	var latest uint64
	err := retry.Do(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = w.chain.LatestBlockNumber(ctx)
		if err != nil {
			w.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return latest, err
}

func (w *Watcher) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics [][]common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := retry.Do(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = w.chain.FilterLogs(ctx, fromBlock, toBlock, w.cfg.Tokens, topics)
		if err != nil {
			w.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

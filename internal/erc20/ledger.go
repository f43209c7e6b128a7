package erc20

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairPool/internal/ledger"
	"pairPool/internal/model"
	"pairPool/internal/retry"
)

// Backend signs, sends and tracks transactions.
type Backend interface {
	bind.ContractTransactor
	bind.DeployBackend
}

// Config holds per-token settings.
type Config struct {
	Token        common.Address
	MaxRetries   int
	RetryBackoff time.Duration
	MineTimeout  time.Duration
	// BalanceBlock pins balance reads to a block, normally the last block whose
	// deposits were all delivered to the pool. Unset or !ok reads at latest.
	BalanceBlock func() (uint64, bool)
}

// Ledger adapts an ERC20 token contract to ledger.Ledger. Every request is
// served on its own goroutine; queries are retried, transfers never are.
type Ledger struct {
	cfg      Config
	caller   Caller
	backend  Backend
	signer   *Signer
	contract *bind.BoundContract
	logger   *zap.Logger

	wg sync.WaitGroup
}

var _ ledger.Ledger = (*Ledger)(nil)

// AssetID is the asset id of a token contract.
func AssetID(token common.Address) model.AssetID {
	return model.AssetID(token.Hex())
}

// AccountID is the account id of an address.
func AccountID(addr common.Address) model.AccountID {
	return model.AccountID(addr.Hex())
}

// New builds a token ledger. backend and signer may be nil for a read-only
// ledger, which rejects transfers.
func New(cfg Config, caller Caller, backend Backend, signer *Signer, logger *zap.Logger) (*Ledger, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MineTimeout <= 0 {
		cfg.MineTimeout = 2 * time.Minute
	}
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	l := &Ledger{
		cfg:     cfg,
		caller:  caller,
		backend: backend,
		signer:  signer,
		logger:  logger.With(zap.String("token", cfg.Token.Hex())),
	}
	if backend != nil {
		l.contract = bind.NewBoundContract(cfg.Token, parsed, nil, backend, nil)
	}
	return l, nil
}

func (l *Ledger) Asset() model.AssetID {
	return AssetID(l.cfg.Token)
}

// Wait blocks until every in-flight request has replied.
func (l *Ledger) Wait() {
	l.wg.Wait()
}

// ProvisionStorage acknowledges immediately: ERC20 balances need no registration.
func (l *Ledger) ProvisionStorage(ctx context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindProvision
	if err := l.check(req, reply); err != nil {
		return err
	}
	l.spawn(ctx, req, reply, func(context.Context) ledger.Response {
		return l.response(req)
	})
	return nil
}

func (l *Ledger) QueryMetadata(ctx context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindMetadata
	if err := l.check(req, reply); err != nil {
		return err
	}
	l.spawn(ctx, req, reply, func(ctx context.Context) ledger.Response {
		resp := l.response(req)
		var meta model.AssetMeta
		resp.Err = l.withRetry(ctx, "metadata", func(ctx context.Context) error {
			var err error
			meta, err = fetchMeta(ctx, l.caller, l.cfg.Token, l.logger)
			return err
		})
		if resp.Err == nil {
			resp.Metadata = &meta
		}
		return resp
	})
	return nil
}

func (l *Ledger) QueryBalance(ctx context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindBalance
	if err := l.check(req, reply); err != nil {
		return err
	}
	holder, err := parseAccount(req.Holder)
	if err != nil {
		return err
	}
	// Resolved at submission so the read matches the deposits settled so far.
	var block *big.Int
	if l.cfg.BalanceBlock != nil {
		if n, ok := l.cfg.BalanceBlock(); ok {
			block = new(big.Int).SetUint64(n)
		}
	}
	l.spawn(ctx, req, reply, func(ctx context.Context) ledger.Response {
		resp := l.response(req)
		resp.Err = l.withRetry(ctx, "balance", func(ctx context.Context) error {
			bal, err := balanceOf(ctx, l.caller, l.cfg.Token, holder, block)
			if err != nil {
				return err
			}
			value, overflow := uint256.FromBig(bal)
			if overflow {
				return fmt.Errorf("balance %s exceeds 256 bits", bal)
			}
			resp.Balance = value
			return nil
		})
		return resp
	})
	return nil
}

// Transfer sends transfer(to, amount) signed by the ledger's key and replies
// once the transaction is mined.
func (l *Ledger) Transfer(ctx context.Context, req ledger.Request, reply ledger.Reply) error {
	req.Kind = ledger.KindTransfer
	if err := l.check(req, reply); err != nil {
		return err
	}
	if l.contract == nil || l.signer == nil {
		return fmt.Errorf("transfer: no signer configured")
	}
	if req.Amount == nil {
		return fmt.Errorf("transfer: amount is nil")
	}
	to, err := parseAccount(req.To)
	if err != nil {
		return err
	}
	l.spawn(ctx, req, reply, func(ctx context.Context) ledger.Response {
		resp := l.response(req)
		resp.Err = l.transfer(ctx, to, req)
		return resp
	})
	return nil
}

func (l *Ledger) transfer(ctx context.Context, to common.Address, req ledger.Request) error {
	tx, err := l.signer.transact(ctx, l.contract, "transfer", to, req.Amount.ToBig())
	if err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}
	l.logger.Info("transfer sent",
		zap.String("request_id", req.ID),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", req.Amount.Dec()),
		zap.String("memo", req.Memo),
	)

	mineCtx, cancel := context.WithTimeout(ctx, l.cfg.MineTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(mineCtx, l.backend, tx)
	if err != nil {
		return fmt.Errorf("wait transfer %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transfer %s reverted", tx.Hash().Hex())
	}
	return nil
}

func (l *Ledger) withRetry(ctx context.Context, what string, fn func(context.Context) error) error {
	return retry.Do(ctx, l.cfg.MaxRetries, l.cfg.RetryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil {
			l.logger.Warn("ledger query failed", zap.String("query", what), zap.Error(err))
		}
		return err
	})
}

func (l *Ledger) check(req ledger.Request, reply ledger.Reply) error {
	if reply == nil {
		return fmt.Errorf("reply is nil")
	}
	if req.Asset != "" && req.Asset != l.Asset() {
		return fmt.Errorf("%s: %w", req.Asset, ledger.ErrUnsupported)
	}
	return nil
}

func (l *Ledger) response(req ledger.Request) ledger.Response {
	return ledger.Response{RequestID: req.ID, Kind: req.Kind, Asset: l.Asset()}
}

func (l *Ledger) spawn(ctx context.Context, req ledger.Request, reply ledger.Reply, fn func(context.Context) ledger.Response) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		resp := fn(ctx)
		resp.RequestID = req.ID
		reply(resp)
	}()
}

func parseAccount(id model.AccountID) (common.Address, error) {
	if !common.IsHexAddress(string(id)) {
		return common.Address{}, fmt.Errorf("invalid account address: %q", id)
	}
	return common.HexToAddress(string(id)), nil
}

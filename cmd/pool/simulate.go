package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairPool/internal/config"
	"pairPool/internal/ledger"
	"pairPool/internal/ledger/memledger"
	"pairPool/internal/model"
	"pairPool/internal/pool"
	"pairPool/internal/units"
)

const (
	simOwner  = model.AccountID("owner")
	simSelf   = model.AccountID("pool")
	simTrader = model.AccountID("trader")
)

type simulation struct {
	ctx    context.Context
	pool   *pool.Pool
	a, b   *memledger.Ledger
	logger *zap.Logger
}

type simulateReport struct {
	Sold     string             `json:"sold"`
	Quoted   string             `json:"quoted"`
	Received string             `json:"received"`
	Pool     model.PoolSnapshot `json:"pool"`
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	report, err := simulate(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func simulate(ctx context.Context, cfg config.SimulateConfig, logger *zap.Logger) (simulateReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	metaA := model.AssetMeta{Asset: "token-a", Decimals: cfg.DecimalsA, Symbol: "TKA", Name: "Token A"}
	metaB := model.AssetMeta{Asset: "token-b", Decimals: cfg.DecimalsB, Symbol: "TKB", Name: "Token B"}

	reserveA, err := units.ParseAmount(cfg.ReserveA, metaA.Decimals)
	if err != nil {
		return simulateReport{}, fmt.Errorf("parse reserve-a: %w", err)
	}
	reserveB, err := units.ParseAmount(cfg.ReserveB, metaB.Decimals)
	if err != nil {
		return simulateReport{}, fmt.Errorf("parse reserve-b: %w", err)
	}

	sim := &simulation{
		ctx:    ctx,
		a:      memledger.New(metaA, memledger.WithManualDelivery()),
		b:      memledger.New(metaB, memledger.WithManualDelivery()),
		logger: logger,
	}
	sim.pool = pool.New(pool.Config{Self: simSelf}, map[model.AssetID]ledger.Ledger{
		metaA.Asset: sim.a.Client(simSelf),
		metaB.Asset: sim.b.Client(simSelf),
	}, logger)

	sell, buy, sellMeta, buyMeta := sim.a, sim.b, metaA, metaB
	if cfg.Sell == "b" {
		sell, buy, sellMeta, buyMeta = sim.b, sim.a, metaB, metaA
	}
	amount, err := units.ParseAmount(cfg.Amount, sellMeta.Decimals)
	if err != nil {
		return simulateReport{}, fmt.Errorf("parse amount: %w", err)
	}

	sim.a.Mint(simOwner, reserveA)
	sim.b.Mint(simOwner, reserveB)
	sell.Mint(simTrader, amount)

	if err := sim.pool.Initialize(ctx, simOwner, metaA.Asset, metaB.Asset); err != nil {
		return simulateReport{}, err
	}
	sim.flush()

	for _, l := range []*memledger.Ledger{sim.a, sim.b} {
		if err := sim.deposit(l, simOwner, l.BalanceOf(simOwner), ""); err != nil {
			return simulateReport{}, fmt.Errorf("add liquidity: %w", err)
		}
	}

	if err := sim.pool.ProvisionHolder(ctx, simOwner, buyMeta.Asset, simTrader); err != nil {
		return simulateReport{}, err
	}
	sim.flush()

	quoted, err := sim.pool.Quote(sellMeta.Asset, buyMeta.Asset, amount)
	if err != nil {
		return simulateReport{}, fmt.Errorf("quote: %w", err)
	}
	msg, err := json.Marshal(model.DepositMessage{Sell: sellMeta.Asset, Buy: buyMeta.Asset})
	if err != nil {
		return simulateReport{}, err
	}
	if err := sim.deposit(sell, simTrader, amount, string(msg)); err != nil {
		return simulateReport{}, fmt.Errorf("swap: %w", err)
	}
	sim.flush()

	return simulateReport{
		Sold:     units.FormatAmount(amount, sellMeta.Decimals) + " " + sellMeta.Symbol,
		Quoted:   units.FormatAmount(quoted, buyMeta.Decimals) + " " + buyMeta.Symbol,
		Received: units.FormatAmount(buy.BalanceOf(simTrader), buyMeta.Decimals) + " " + buyMeta.Symbol,
		Pool:     sim.pool.Describe(),
	}, nil
}

func (s *simulation) flush() {
	for s.a.Flush()+s.b.Flush() > 0 {
	}
}

func (s *simulation) deposit(l *memledger.Ledger, sender model.AccountID, amount *uint256.Int, msg string) error {
	kept, err := l.TransferCall(sender, simSelf, amount, msg, func(n model.DepositNotification) (*uint256.Int, error) {
		return s.pool.OnDeposit(s.ctx, n)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("deposit settled",
		zap.String("asset", string(l.Asset())),
		zap.String("sender", string(sender)),
		zap.String("kept", kept.Dec()),
	)
	return nil
}

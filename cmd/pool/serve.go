package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairPool/internal/api"
	"pairPool/internal/chain"
	"pairPool/internal/config"
	"pairPool/internal/erc20"
	"pairPool/internal/ledger"
	"pairPool/internal/metrics"
	"pairPool/internal/model"
	"pairPool/internal/pool"
	"pairPool/internal/storage"
	"pairPool/internal/storage/postgres"
	"pairPool/internal/watch"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, addr := range []string{cfg.PoolAddress, cfg.Owner, cfg.TokenA, cfg.TokenB} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid address %q", addr)
		}
	}
	poolAddr := common.HexToAddress(cfg.PoolAddress)
	tokens := []common.Address{common.HexToAddress(cfg.TokenA), common.HexToAddress(cfg.TokenB)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	opts, err := chainClient.NewTransactor(ctx, cfg.PrivateKey)
	if err != nil {
		return err
	}
	signer := erc20.NewSigner(opts)
	if signer.Address() != poolAddr {
		return fmt.Errorf("private key controls %s, not pool address %s", signer.Address().Hex(), poolAddr.Hex())
	}

	var watcher *watch.Watcher
	balanceBlock := func() (uint64, bool) {
		if watcher == nil {
			return 0, false
		}
		return watcher.DeliveredThrough()
	}

	ledgers := make(map[model.AssetID]ledger.Ledger, len(tokens))
	erc20Ledgers := make([]*erc20.Ledger, 0, len(tokens))
	for _, token := range tokens {
		l, err := erc20.New(erc20.Config{
			Token:        token,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			MineTimeout:  cfg.MineTimeout,
			BalanceBlock: balanceBlock,
		}, chainClient, chainClient.Backend(), signer, logger)
		if err != nil {
			return err
		}
		ledgers[l.Asset()] = l
		erc20Ledgers = append(erc20Ledgers, l)
	}
	defer func() {
		for _, l := range erc20Ledgers {
			l.Wait()
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	var (
		journal     pool.SettlementSink
		snapshots   storage.SnapshotStore
		checkpoints watch.CheckpointStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		name := poolAddr.Hex()
		journal = store
		snapshots = &postgres.SnapshotStore{Store: store, Name: name}
		checkpoints = &postgres.CheckpointStore{Store: store, Name: name}
	} else {
		journal = storage.NewJsonlJournal(cfg.Journal)
		snapshots = &storage.FileSnapshotStore{Path: cfg.Snapshot}
		checkpoints = &watch.FileCheckpointStore{Path: cfg.Checkpoint}
	}

	if prev, ok, err := snapshots.Load(ctx); err != nil {
		logger.Warn("load previous snapshot failed", zap.Error(err))
	} else if ok {
		logger.Info("previous snapshot",
			zap.String("taken_at", prev.TakenAt),
			zap.String("invariant_k", prev.InvariantK),
		)
	}

	p := pool.New(pool.Config{
		Self:                erc20.AccountID(poolAddr),
		RefreshAfterDeposit: cfg.RefreshAfterDeposit,
		Metrics:             m,
	}, ledgers, logger)
	runtime := pool.NewRuntime(p, pool.RuntimeConfig{
		Settlements: journal,
		Snapshots:   snapshots,
		QueueSize:   cfg.QueueSize,
	}, logger)

	watcher = watch.New(watch.Config{
		Pool:          poolAddr,
		Tokens:        tokens,
		StartBlock:    cfg.StartBlock,
		BatchSize:     cfg.BatchSize,
		Confirmations: cfg.Confirmations,
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
	}, chainClient, runtime, ledgers, checkpoints, logger)

	apiCfg := api.Config{StallAfter: cfg.StallAfter, Gatherer: registry}
	if cfg.APIToken != "" {
		apiCfg.Identify = api.BearerIdentity(cfg.APIToken, erc20.AccountID(common.HexToAddress(cfg.Owner)))
	} else {
		logger.Warn("owner endpoints trust the " + api.AccountHeader + " header, serve them behind an authenticating proxy")
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(runtime, apiCfg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("pool start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", poolAddr.Hex()),
		zap.String("owner", cfg.Owner),
		zap.String("token_a", tokens[0].Hex()),
		zap.String("token_b", tokens[1].Hex()),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runtime.Run(gctx)
	})
	g.Go(func() error {
		// Fixes the confirmed head before bootstrap balance reads are pinned to it.
		if err := watcher.Prepare(gctx); err != nil {
			return fmt.Errorf("prepare watcher: %w", err)
		}
		if err := runtime.Initialize(gctx, erc20.AccountID(common.HexToAddress(cfg.Owner)), erc20.AssetID(tokens[0]), erc20.AssetID(tokens[1])); err != nil {
			return fmt.Errorf("initialize pool: %w", err)
		}
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("pool stopped")
	return nil
}

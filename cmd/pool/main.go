package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "pool",
		Short:        "Two-asset constant-product pool keeper",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool against two ERC20 token contracts",
		RunE:  runServe,
	}

	serveCmd.Flags().String("rpc", "", "RPC URL")
	serveCmd.Flags().String("pool-address", "", "address holding the pool reserves")
	serveCmd.Flags().String("private-key", "", "hex private key of pool-address, used to sign payouts")
	serveCmd.Flags().String("owner", "", "pool owner address")
	serveCmd.Flags().String("token-a", "", "first token contract address")
	serveCmd.Flags().String("token-b", "", "second token contract address")
	serveCmd.Flags().Uint64("start-block", 0, "first block to watch for deposits, 0 means head")
	serveCmd.Flags().Uint64("batch-size", 2000, "blocks per log query")
	serveCmd.Flags().Uint64("confirmations", 3, "blocks behind head considered final")
	serveCmd.Flags().Duration("poll-interval", 5*time.Second, "deposit poll interval")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().Duration("mine-timeout", 2*time.Minute, "how long to wait for a payout to be mined")
	serveCmd.Flags().String("journal", "./data/settlements.jsonl", "settlement journal JSONL path")
	serveCmd.Flags().String("snapshot", "./data/pool.json", "pool snapshot path")
	serveCmd.Flags().String("checkpoint", "./data/checkpoint.json", "watcher checkpoint path")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces journal, snapshot and checkpoint files")
	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("api-token", "", "bearer token for owner endpoints; unset trusts the X-Account header")
	serveCmd.Flags().Duration("stall-after", time.Minute, "report pending ledger requests older than this as stalled")
	serveCmd.Flags().Int("queue-size", 64, "pending call queue size")
	serveCmd.Flags().Bool("refresh-after-deposit", false, "re-query the ledger balance after each owner deposit")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("log-file", "", "also write logs to this file, rotated")

	root.AddCommand(serveCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a swap against an in-memory pool and print its state",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().Uint8("decimals-a", 18, "decimals of asset a")
	simulateCmd.Flags().Uint8("decimals-b", 6, "decimals of asset b")
	simulateCmd.Flags().String("reserve-a", "900", "initial liquidity of asset a, in display units")
	simulateCmd.Flags().String("reserve-b", "300", "initial liquidity of asset b, in display units")
	simulateCmd.Flags().String("sell", "a", "asset to sell (a or b)")
	simulateCmd.Flags().String("amount", "100", "amount to sell, in display units")
	simulateCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against explicit reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "reserve of the sold asset, in display units")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the bought asset, in display units")
	quoteCmd.Flags().String("amount", "", "amount sold, in display units")
	quoteCmd.Flags().Uint8("decimals-in", 18, "decimals of the sold asset")
	quoteCmd.Flags().Uint8("decimals-out", 18, "decimals of the bought asset")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil || file == "" {
		return logger, err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, err
	}
	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotated, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pairPool/internal/config"
	"pairPool/internal/swap"
	"pairPool/internal/units"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	out, err := quote(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// quote returns the bought amount in display units.
func quote(cfg config.QuoteConfig) (string, error) {
	reserveIn, err := units.ParseAmount(cfg.ReserveIn, cfg.DecimalsIn)
	if err != nil {
		return "", fmt.Errorf("parse reserve-in: %w", err)
	}
	reserveOut, err := units.ParseAmount(cfg.ReserveOut, cfg.DecimalsOut)
	if err != nil {
		return "", fmt.Errorf("parse reserve-out: %w", err)
	}
	amount, err := units.ParseAmount(cfg.Amount, cfg.DecimalsIn)
	if err != nil {
		return "", fmt.Errorf("parse amount: %w", err)
	}

	out, err := swap.Quote(
		swap.Leg{Asset: "in", Balance: reserveIn, Decimals: cfg.DecimalsIn},
		swap.Leg{Asset: "out", Balance: reserveOut, Decimals: cfg.DecimalsOut},
		amount,
	)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}
	return units.FormatAmount(out, cfg.DecimalsOut), nil
}

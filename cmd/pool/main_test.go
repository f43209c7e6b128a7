package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"pairPool/internal/config"
)

func TestQuote(t *testing.T) {
	got, err := quote(config.QuoteConfig{ReserveIn: "900", ReserveOut: "300", Amount: "100"})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got != "30" {
		t.Fatalf("expected 30, got %s", got)
	}

	got, err = quote(config.QuoteConfig{ReserveIn: "900", ReserveOut: "300", Amount: "100", DecimalsIn: 18, DecimalsOut: 6})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got != "30.000000" {
		t.Fatalf("expected 30.000000, got %s", got)
	}

	if _, err := quote(config.QuoteConfig{ReserveIn: "0", ReserveOut: "300", Amount: "1"}); err == nil {
		t.Fatalf("expected empty reserve error")
	}
}

func TestSimulate(t *testing.T) {
	report, err := simulate(context.Background(), config.SimulateConfig{
		DecimalsA: 18,
		DecimalsB: 6,
		ReserveA:  "900",
		ReserveB:  "300",
		Sell:      "a",
		Amount:    "100",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if report.Quoted != "30.000000 TKB" || report.Received != "30.000000 TKB" {
		t.Fatalf("unexpected swap result: quoted %s received %s", report.Quoted, report.Received)
	}
	if len(report.Pool.Assets) != 2 {
		t.Fatalf("expected two assets, got %d", len(report.Pool.Assets))
	}
	if got := report.Pool.Assets[1].MirroredBalance; got != "270000000" {
		t.Fatalf("expected mirrored B 270000000, got %s", got)
	}
	for _, a := range report.Pool.Assets {
		if a.SyncState != "ready" {
			t.Fatalf("asset %s not ready: %s", a.Asset, a.SyncState)
		}
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newLogger("loud", ""); err == nil {
		t.Fatalf("expected level error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
rpc: http://file
pool-address: "0x00000000000000000000000000000000000000aa"
token-a: "0x00000000000000000000000000000000000000a1"
token-b: "0x00000000000000000000000000000000000000b1"
owner: "0x00000000000000000000000000000000000000ff"
private-key: "0x01"
confirmations: 7
stall-after: 90s
`)
	t.Setenv("POOL_RPC", "http://env")
	t.Setenv("POOL_REFRESH_AFTER_DEPOSIT", "true")
	t.Setenv("POOL_API_TOKEN", "s3cret")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.Uint64("batch-size", 2000, "")
	flags.String("http-addr", ":8080", "")
	if err := flags.Parse([]string{"--batch-size=50"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://env" {
		t.Fatalf("expected env to override file, got %q", cfg.RPCURL)
	}
	if cfg.BatchSize != 50 {
		t.Fatalf("expected flag batch size 50, got %d", cfg.BatchSize)
	}
	if cfg.Confirmations != 7 || cfg.StallAfter != 90*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.RefreshAfterDeposit {
		t.Fatalf("expected refresh-after-deposit from env")
	}
	if cfg.APIToken != "s3cret" {
		t.Fatalf("expected api-token from env, got %q", cfg.APIToken)
	}
	if cfg.HTTPAddr != ":8080" || cfg.PollInterval != 5*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		RPCURL:      "http://node",
		PoolAddress: "0xaa",
		PrivateKey:  "0x01",
		Owner:       "0xff",
		TokenA:      "0xa1",
		TokenB:      "0xb1",
		BatchSize:   10,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := base
	missing.PrivateKey = ""
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected missing private key error")
	}

	same := base
	same.TokenB = "0xA1"
	if err := same.Validate(); err == nil {
		t.Fatalf("expected same token error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}
	if _, err := Load("", nil); err != nil {
		t.Fatalf("default config file should be optional: %v", err)
	}
}

func TestLoadSimulate(t *testing.T) {
	cfg, err := LoadSimulate("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReserveA != "900" || cfg.ReserveB != "300" || cfg.Sell != "a" || cfg.DecimalsB != 6 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("POOL_SELL", "c")
	if _, err := LoadSimulate("", nil); err == nil {
		t.Fatalf("expected invalid sell error")
	}
}

func TestLoadQuote(t *testing.T) {
	if _, err := LoadQuote("", nil); err == nil {
		t.Fatalf("expected missing reserve error")
	}

	t.Setenv("POOL_RESERVE_IN", "900")
	t.Setenv("POOL_RESERVE_OUT", "300")
	t.Setenv("POOL_AMOUNT", "100")
	t.Setenv("POOL_DECIMALS_OUT", "6")
	cfg, err := LoadQuote("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DecimalsIn != 18 || cfg.DecimalsOut != 6 || cfg.Amount != "100" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the serve command configuration loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	PoolAddress string
	PrivateKey  string
	Owner       string
	TokenA      string
	TokenB      string

	StartBlock    uint64
	BatchSize     uint64
	Confirmations uint64
	PollInterval  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	MineTimeout   time.Duration

	Journal    string
	Snapshot   string
	Checkpoint string
	PGDSN      string

	HTTPAddr            string
	APIToken            string
	StallAfter          time.Duration
	QueueSize           int
	RefreshAfterDeposit bool

	LogLevel string
	LogFile  string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"batch-size":    uint64(2000),
		"confirmations": uint64(3),
		"poll-interval": 5 * time.Second,
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"mine-timeout":  2 * time.Minute,
		"journal":       "./data/settlements.jsonl",
		"snapshot":      "./data/pool.json",
		"checkpoint":    "./data/checkpoint.json",
		"http-addr":     ":8080",
		"stall-after":   time.Minute,
		"queue-size":    64,
		"log-level":     "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		PoolAddress:         v.GetString("pool-address"),
		PrivateKey:          v.GetString("private-key"),
		Owner:               v.GetString("owner"),
		TokenA:              v.GetString("token-a"),
		TokenB:              v.GetString("token-b"),
		StartBlock:          v.GetUint64("start-block"),
		BatchSize:           v.GetUint64("batch-size"),
		Confirmations:       v.GetUint64("confirmations"),
		PollInterval:        v.GetDuration("poll-interval"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		MineTimeout:         v.GetDuration("mine-timeout"),
		Journal:             v.GetString("journal"),
		Snapshot:            v.GetString("snapshot"),
		Checkpoint:          v.GetString("checkpoint"),
		PGDSN:               v.GetString("pg-dsn"),
		HTTPAddr:            v.GetString("http-addr"),
		APIToken:            v.GetString("api-token"),
		StallAfter:          v.GetDuration("stall-after"),
		QueueSize:           v.GetInt("queue-size"),
		RefreshAfterDeposit: v.GetBool("refresh-after-deposit"),
		LogLevel:            v.GetString("log-level"),
		LogFile:             v.GetString("log-file"),
	}

	return cfg, nil
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"rpc", c.RPCURL},
		{"pool-address", c.PoolAddress},
		{"private-key", c.PrivateKey},
		{"owner", c.Owner},
		{"token-a", c.TokenA},
		{"token-b", c.TokenB},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if strings.EqualFold(c.TokenA, c.TokenB) {
		return errors.New("token-a and token-b must differ")
	}
	if c.BatchSize == 0 {
		return errors.New("batch-size must be greater than zero")
	}
	return nil
}

// SimulateConfig drives an in-memory pool scenario.
type SimulateConfig struct {
	DecimalsA uint8
	DecimalsB uint8
	ReserveA  string
	ReserveB  string
	Sell      string
	Amount    string
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"decimals-a": 18,
		"decimals-b": 6,
		"reserve-a":  "900",
		"reserve-b":  "300",
		"sell":       "a",
		"amount":     "100",
		"log-level":  "warn",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		DecimalsA: uint8(v.GetUint("decimals-a")),
		DecimalsB: uint8(v.GetUint("decimals-b")),
		ReserveA:  v.GetString("reserve-a"),
		ReserveB:  v.GetString("reserve-b"),
		Sell:      strings.ToLower(v.GetString("sell")),
		Amount:    v.GetString("amount"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.Sell != "a" && cfg.Sell != "b" {
		return SimulateConfig{}, fmt.Errorf("sell must be a or b, got %q", cfg.Sell)
	}
	return cfg, nil
}

// QuoteConfig prices a single swap against explicit reserves.
type QuoteConfig struct {
	ReserveIn   string
	ReserveOut  string
	Amount      string
	DecimalsIn  uint8
	DecimalsOut uint8
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"decimals-in":  18,
		"decimals-out": 18,
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		ReserveIn:   v.GetString("reserve-in"),
		ReserveOut:  v.GetString("reserve-out"),
		Amount:      v.GetString("amount"),
		DecimalsIn:  uint8(v.GetUint("decimals-in")),
		DecimalsOut: uint8(v.GetUint("decimals-out")),
	}
	if cfg.ReserveIn == "" || cfg.ReserveOut == "" || cfg.Amount == "" {
		return QuoteConfig{}, errors.New("reserve-in, reserve-out and amount are required")
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/trust-ledger/internal/money"
	"github.com/example/trust-ledger/internal/trust"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	ListenAddr  string

	// StoreDriver selects the aggregate store: "postgres" or "sqlite".
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// RedisAddr enables the distributed per-account lock when set.
	RedisAddr string

	Ledger trust.Config
}

// Load reads configuration from environment variables. Ledger knobs fall
// back to the production defaults when unset.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: os.Getenv("APP_ENV"),
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		StoreDriver: envOr("STORE_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  envOr("SQLITE_PATH", "trustledger.db"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		Ledger:      trust.DefaultConfig(),
	}

	var err error
	if cfg.Ledger.MaxTransactionAmount, err = amountOr("MAX_TRANSACTION_AMOUNT", cfg.Ledger.MaxTransactionAmount); err != nil {
		return nil, err
	}
	if cfg.Ledger.ReconciliationEpsilon, err = amountOr("RECONCILIATION_EPSILON", cfg.Ledger.ReconciliationEpsilon); err != nil {
		return nil, err
	}
	if cfg.Ledger.CriticalDiscrepancyThreshold, err = amountOr("CRITICAL_DISCREPANCY_THRESHOLD", cfg.Ledger.CriticalDiscrepancyThreshold); err != nil {
		return nil, err
	}
	if cfg.Ledger.InterestMinimumPayout, err = amountOr("INTEREST_MIN_PAYOUT", cfg.Ledger.InterestMinimumPayout); err != nil {
		return nil, err
	}
	if v := os.Getenv("RECONCILIATION_INTERVAL_DAYS"); v != "" {
		days, perr := strconv.Atoi(v)
		if perr != nil || days <= 0 {
			return nil, errors.New("RECONCILIATION_INTERVAL_DAYS must be a positive integer")
		}
		cfg.Ledger.ReconciliationInterval = time.Duration(days) * 24 * time.Hour
	}
	if v := os.Getenv("MIN_HOLDING_DAYS"); v != "" {
		days, perr := strconv.Atoi(v)
		if perr != nil || days < 0 {
			return nil, errors.New("MIN_HOLDING_DAYS must be a non-negative integer")
		}
		cfg.Ledger.MinimumHoldingDays = days
	}
	if v := os.Getenv("ALLOW_POOLED_DEBITS"); v != "" {
		allowed, perr := strconv.ParseBool(v)
		if perr != nil {
			return nil, errors.New("ALLOW_POOLED_DEBITS must be a boolean")
		}
		cfg.Ledger.AllowPooledDebits = allowed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete for its environment.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	default:
		return errors.New("STORE_DRIVER must be postgres or sqlite")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	// Production runs multiple instances; the in-process lock alone cannot
	// serialize them.
	if c.Environment == "production" || c.Environment == "staging" {
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required in " + c.Environment)
		}
		if c.StoreDriver == "sqlite" {
			return errors.New("sqlite store is not supported in " + c.Environment)
		}
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func amountOr(key string, fallback money.Amount) (money.Amount, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	a, err := money.Parse(v)
	if err != nil {
		return money.Amount{}, errors.New(key + " must be a decimal amount")
	}
	return a, nil
}

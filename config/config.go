package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/eqtlab/wallet/client"
	"github.com/eqtlab/wallet/flow"
	"github.com/eqtlab/wallet/pkg/postgres"
	"github.com/eqtlab/wallet/wallet"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Debug    bool            `env:"APP_DEBUG"`
	API      client.Config   `env:",prefix=API_"`
	Storage  Storage         `env:",prefix=STORAGE_"`
	Flow     flow.Config     `env:",prefix=FLOW_"`
	Currency wallet.Currency `env:",prefix=CURRENCY_"`

	OpeningBalance int64 `env:"LEDGER_OPENING_BALANCE, default=0"`
}

// Storage selects where the session token is kept on this device.
type Storage struct {
	Driver     string          `env:"DRIVER, default=sqlite"`
	SQLitePath string          `env:"SQLITE_PATH, default=wallet.db"`
	PG         postgres.Config `env:",prefix=PG_"`
	SealKey    string          `env:"SEAL_KEY"` // encrypts the stored token when set
}

func ParseEnv(ctx context.Context) (Config, error) {
	return ParseEnvWith(ctx, envconfig.OsLookuper())
}

func ParseEnvWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	cfg := Config{}
	if err := envconfig.ProcessWith(ctx, &cfg, l); err != nil {
		return cfg, err
	}

	switch cfg.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Storage.PG.URL == "" {
			return cfg, fmt.Errorf("STORAGE_PG_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return cfg, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.API.Timeout <= 0 {
		return cfg, fmt.Errorf("API_TIMEOUT must be positive, got %s", cfg.API.Timeout)
	}
	if len(cfg.Flow.TopupMethods) == 0 {
		return cfg, fmt.Errorf("FLOW_TOPUP_METHODS must name at least one method")
	}

	return cfg, nil
}

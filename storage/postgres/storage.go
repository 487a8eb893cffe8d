package postgres

import (
	"context"
	"fmt"

	"github.com/eqtlab/wallet/pkg/db"
)

const table = "device_storage"

// Storage implements wallet.DeviceStorage interface via PostgreSQL
type Storage struct {
	db *db.DB
}

func New(db *db.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) EnsureSchema(ctx context.Context) error {
	err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	return nil
}

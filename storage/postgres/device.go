package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/eqtlab/wallet/pkg/db"
)

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.Select(
		ctx,
		squirrel.Select("value").From(table).Where(squirrel.Eq{"key": key}),
		db.ScanOnce(&value),
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	return value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	query := squirrel.Insert(table).
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at")

	if err := s.db.Insert(ctx, query, db.ScanOnce()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.db.Delete(ctx, squirrel.Delete(table).Where(squirrel.Eq{"key": key}), db.ScanOnce()); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

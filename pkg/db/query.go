package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func NewDB(c conn, log *zap.Logger) *DB {
	return &DB{
		log:  log,
		conn: c,
	}
}

type DB struct {
	log  *zap.Logger
	conn conn
}

func (db *DB) Select(ctx context.Context, query squirrel.SelectBuilder, handler func(rows pgx.Rows) error) error {
	sql, args, err := query.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build select query: %w", err)
	}

	if err := db.query(ctx, sql, args, handler); err != nil {
		return fmt.Errorf("exec select query: %w", err)
	}

	return nil
}

func (db *DB) Insert(ctx context.Context, query squirrel.InsertBuilder, handler func(rows pgx.Rows) error) error {
	sql, args, err := query.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if err := db.query(ctx, sql, args, handler); err != nil {
		return fmt.Errorf("exec insert query: %w", err)
	}

	return nil
}

func (db *DB) Delete(ctx context.Context, query squirrel.DeleteBuilder, handler func(rows pgx.Rows) error) error {
	sql, args, err := query.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if err := db.query(ctx, sql, args, handler); err != nil {
		return fmt.Errorf("exec delete query: %w", err)
	}

	return nil
}

// Exec runs a statement that returns no rows, such as DDL.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	defer func() {
		db.logQuery(time.Since(start), sql, args)
	}()

	if _, err := db.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("exec statement: %w", err)
	}

	return nil
}

func (db *DB) query(ctx context.Context, sql string, args []any, scanner rowScanner) error {
	start := time.Now()
	defer func() {
		db.logQuery(time.Since(start), sql, args)
	}()

	rows, err := db.conn.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("exec query: %w", err)
	}
	defer rows.Close()

	var isAnyRowProcessed bool
	for rows.Next() {
		if scanner == nil {
			continue
		}

		if err = scanner(rows); err != nil {
			return fmt.Errorf("handle row: %w", err)
		}

		isAnyRowProcessed = true
	}

	// Err must only be called after the Rows is closed (either by calling Close or by Next returning false)
	if err = rows.Err(); err != nil {
		return fmt.Errorf("reading query result: %w", err)
	}

	if scanner != nil && !isAnyRowProcessed {
		return pgx.ErrNoRows
	}

	return nil
}

func (db *DB) logQuery(dur time.Duration, sql string, args []any) {
	sql = strings.ReplaceAll(sql, "\t", " ")
	sql = strings.ReplaceAll(sql, "\n", " ")
	sql = strings.Trim(sql, " ")
	// args carry sealed tokens, only their count is logged
	db.log.Debug(
		"DB Request",
		zap.String("SQL", sql),
		zap.Int("Args", len(args)),
		zap.Duration("dur", dur),
	)
}

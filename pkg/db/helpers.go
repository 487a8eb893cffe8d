package db

import (
	"github.com/jackc/pgx/v5"
)

type rowScanner func(rows pgx.Rows) error

// ScanOnce scans each returned row into dest. With no dest the rows are only drained.
func ScanOnce(dest ...any) rowScanner {
	var scanner rowScanner

	if len(dest) > 0 {
		scanner = func(rows pgx.Rows) error {
			return rows.Scan(dest...)
		}
	}

	return scanner
}

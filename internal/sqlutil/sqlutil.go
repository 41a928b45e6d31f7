// Package sqlutil holds small database/sql helpers shared by the snapshot
// store.
package sqlutil

import (
	"database/sql"
	"fmt"
)

// Query runs a query and scans every row with scan. what names a row in
// error messages ("entity", "reference").
func Query[T any](db *sql.DB, what, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %ss: %w", what, err)
	}
	return ScanRows(rows, what, scan)
}

// ScanRows scans all rows into a slice and closes them.
func ScanRows[T any](rows *sql.Rows, what string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %ss: %w", what, err)
	}
	return out, nil
}

package database

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"file-recorder/internal/filesystem"
)

// UpsertScanSource records the result of a completed scan of path and
// returns the source id.
func (d *Database) UpsertScanSource(ctx context.Context, path string, scanTime time.Time, fileCount, totalSize int64) (int64, error) {
	path = NormalizePath(path)
	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_sources (path, last_scan_time, file_count, total_size)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				last_scan_time = excluded.last_scan_time,
				file_count = excluded.file_count,
				total_size = excluded.total_size
		`, path, toNanos(scanTime), fileCount, totalSize)
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT id FROM scan_sources WHERE path = ?", path).Scan(&id)
	})
	return id, err
}

// ScanSources lists scanned roots, local ones first.
func (d *Database) ScanSources(ctx context.Context) ([]ScanSource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, path, COALESCE(last_scan_time, 0), COALESCE(file_count, 0), COALESCE(total_size, 0)
		FROM scan_sources
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []ScanSource{}
	for rows.Next() {
		var (
			s        ScanSource
			lastScan int64
		)
		if err := rows.Scan(&s.ID, &s.Path, &lastScan, &s.FileCount, &s.TotalSize); err != nil {
			return nil, err
		}
		s.LastScanTime = fromNanos(lastScan)
		s.IsNetwork = filesystem.IsNetworkPath(s.Path)
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].IsNetwork != sources[j].IsNetwork {
			return !sources[i].IsNetwork
		}
		return strings.ToLower(sources[i].Path) < strings.ToLower(sources[j].Path)
	})
	return sources, nil
}

// DeleteScanSource removes the scan_sources row for path.
func (d *Database) DeleteScanSource(ctx context.Context, path string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM scan_sources WHERE path = ?", NormalizePath(path))
		return err
	})
}

// InsertScanError records an entry the scanner could not read.
func (d *Database) InsertScanError(ctx context.Context, filePath, message, source string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_errors (file_path, error_message, error_time, scan_source)
			VALUES (?, ?, ?, ?)
		`, filePath, message, time.Now().UnixNano(), NormalizePath(source))
		return err
	})
}

// ScanErrors lists scan errors, newest first. An empty source lists all.
func (d *Database) ScanErrors(ctx context.Context, source string, includeResolved bool) ([]ScanError, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("scan_errors", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `
		SELECT id, COALESCE(file_path, ''), COALESCE(error_message, ''), COALESCE(error_time, 0),
		       COALESCE(scan_source, ''), COALESCE(resolved, 0)
		FROM scan_errors WHERE 1 = 1`
	var args []any
	if source != "" {
		query += " AND scan_source = ?"
		args = append(args, NormalizePath(source))
	}
	if !includeResolved {
		query += " AND resolved = 0"
	}
	query += " ORDER BY error_time DESC, id DESC"

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ScanError{}
	for rows.Next() {
		var (
			e        ScanError
			errTime  int64
			resolved int
		)
		if err = rows.Scan(&e.ID, &e.FilePath, &e.ErrorMessage, &errTime, &e.ScanSource, &resolved); err != nil {
			return nil, err
		}
		e.ErrorTime = fromNanos(errTime)
		e.Resolved = resolved != 0
		out = append(out, e)
	}
	err = rows.Err()
	return out, err
}

// ErrorCount returns the number of unresolved scan errors.
func (d *Database) ErrorCount(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scan_errors WHERE resolved = 0").Scan(&n)
	return n, err
}

// MarkErrorResolved flags a scan error as resolved.
func (d *Database) MarkErrorResolved(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE scan_errors SET resolved = 1 WHERE id = ?", id)
		return err
	})
}

// ClearErrors deletes scan errors for source, or all of them when source is empty.
func (d *Database) ClearErrors(ctx context.Context, source string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if source == "" {
			_, err := tx.ExecContext(ctx, "DELETE FROM scan_errors")
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM scan_errors WHERE scan_source = ?", NormalizePath(source))
		return err
	})
}

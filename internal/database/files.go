package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const fileSelect = `
	SELECT f.id, f.filename, COALESCE(f.extension, ''), COALESCE(f.folder_id, 0),
	       COALESCE(fo.path, ''), COALESCE(f.size_bytes, 0), COALESCE(f.ctime, 0),
	       COALESCE(f.mtime, 0), COALESCE(f.scan_time, 0), COALESCE(f.is_dir, 0),
	       COALESCE(f.ai_category, ''), COALESCE(f.ai_tags, '')
	FROM files f
	LEFT JOIN folders fo ON f.folder_id = fo.id
`

func scanFiles(rows *sql.Rows) ([]FileRecord, error) {
	defer rows.Close()

	files := []FileRecord{}
	for rows.Next() {
		var (
			f                      FileRecord
			ctime, mtime, scanTime int64
			isDir                  int
		)
		if err := rows.Scan(&f.ID, &f.Filename, &f.Extension, &f.FolderID, &f.FolderPath,
			&f.Size, &ctime, &mtime, &scanTime, &isDir, &f.AICategory, &f.AITags); err != nil {
			return nil, err
		}
		f.FolderPath = NormalizePath(f.FolderPath)
		f.Ctime = fromNanos(ctime)
		f.Mtime = fromNanos(mtime)
		f.ScanTime = fromNanos(scanTime)
		f.IsDir = isDir != 0
		files = append(files, f)
	}
	return files, rows.Err()
}

// InsertFiles upserts records keyed by (folder, filename), creating folder
// rows on demand, including the row of every directory record. Every record must carry an mtime; the batch is rejected
// with ErrMissingMtime otherwise. sourceID may be nil.
func (d *Database) InsertFiles(ctx context.Context, records []FileRecord, sourceID *int64) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, r := range records {
		if r.Mtime.IsZero() {
			return 0, fmt.Errorf("%s: %w", JoinPath(r.FolderPath, r.Filename), ErrMissingMtime)
		}
	}

	start := time.Now()
	inserted := 0
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO files (filename, extension, folder_id, size_bytes, ctime, mtime, scan_time, is_dir)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(folder_id, filename) DO UPDATE SET
				extension = excluded.extension,
				size_bytes = excluded.size_bytes,
				ctime = excluded.ctime,
				mtime = excluded.mtime,
				scan_time = excluded.scan_time,
				is_dir = excluded.is_dir
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		cache := make(map[string]int64)
		for _, r := range records {
			if r.Filename == "" {
				continue
			}

			folderID, err := getOrCreateFolderTx(ctx, tx, NormalizePath(r.FolderPath), sourceID, cache)
			if err != nil {
				return err
			}
			if r.IsDir {
				// Empty directories still need a folder row for browsing.
				if _, err := getOrCreateFolderTx(ctx, tx, JoinPath(r.FolderPath, r.Filename), sourceID, cache); err != nil {
					return err
				}
			}

			ext := r.Extension
			if ext == "" && !r.IsDir {
				ext = strings.ToLower(filepath.Ext(r.Filename))
			}
			scanTime := r.ScanTime
			if scanTime.IsZero() {
				scanTime = time.Now()
			}
			isDir := 0
			if r.IsDir {
				isDir = 1
			}

			if _, err := stmt.ExecContext(ctx, r.Filename, ext, folderID, r.Size,
				toNanos(r.Ctime), toNanos(r.Mtime), toNanos(scanTime), isDir); err != nil {
				return fmt.Errorf("upsert %s: %w", r.Filename, err)
			}
			inserted++
		}
		return nil
	})
	recordQuery("insert_files", start, err)
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// FilesUnder returns every non-directory record in path or any folder below it.
func (d *Database) FilesUnder(ctx context.Context, path string) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("files_under", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	key, n, prefix := prefixArgs(PathKey(path))
	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, fileSelect+`
		WHERE (fo.path_key = ? OR substr(fo.path_key, 1, ?) = ?)
		  AND (f.is_dir = 0 OR f.is_dir IS NULL)
	`, key, n, prefix)
	if err != nil {
		return nil, err
	}

	var files []FileRecord
	files, err = scanFiles(rows)
	return files, err
}

// UpdateFileTags sets the classification tags of one file record.
func (d *Database) UpdateFileTags(ctx context.Context, fileID int64, category, tags string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE files SET ai_category = ?, ai_tags = ? WHERE id = ?", category, tags, fileID)
		return err
	})
}

// Stats returns totals over the whole index. Directory entries are not
// counted as files.
func (d *Database) Stats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s IndexStats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE is_dir = 0 OR is_dir IS NULL),
			(SELECT COUNT(*) FROM folders),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE is_dir = 0 OR is_dir IS NULL),
			(SELECT COUNT(DISTINCT extension) FROM files WHERE is_dir = 0 OR is_dir IS NULL),
			(SELECT COUNT(*) FROM files WHERE ai_category IS NOT NULL AND ai_category != ''),
			(SELECT COUNT(*) FROM scan_errors WHERE resolved = 0)
	`).Scan(&s.TotalFiles, &s.TotalFolders, &s.TotalSize, &s.ExtensionCount, &s.Categorized, &s.UnresolvedErrors)
	return s, err
}

// OpenConnections returns the number of open pool connections.
func (d *Database) OpenConnections() int {
	return d.db.Stats().OpenConnections
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GetOrCreateFolder returns the id of the folder row for path, creating it and
// any missing ancestors first. Equivalent spellings (separator style,
// trailing separator, letter case) resolve to the same row.
func (d *Database) GetOrCreateFolder(ctx context.Context, path string) (int64, error) {
	start := time.Now()
	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = getOrCreateFolderTx(ctx, tx, NormalizePath(path), nil, nil)
		return err
	})
	recordQuery("get_or_create_folder", start, err)
	return id, err
}

// getOrCreateFolderTx resolves path inside tx. cache maps path keys to ids
// for batch inserts and may be nil.
func getOrCreateFolderTx(ctx context.Context, tx *sql.Tx, path string, sourceID *int64, cache map[string]int64) (int64, error) {
	if path == "" {
		return 0, errors.New("empty folder path")
	}

	key := strings.ToLower(path)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM folders WHERE path_key = ? ORDER BY id LIMIT 1", key,
	).Scan(&id)
	if err == nil {
		if cache != nil {
			cache[key] = id
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup folder %s: %w", path, err)
	}

	var parentID *int64
	if parent := ParentPath(path); parent != "" {
		pid, err := getOrCreateFolderTx(ctx, tx, parent, sourceID, cache)
		if err != nil {
			return 0, err
		}
		parentID = &pid
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO folders (path, path_key, parent_id, scan_source_id) VALUES (?, ?, ?, ?)",
		path, key, parentID, sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert folder %s: %w", path, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if cache != nil {
		cache[key] = id
	}
	return id, nil
}

// FolderByPath returns the folder row for path or ErrFolderNotFound.
func (d *Database) FolderByPath(ctx context.Context, path string) (*Folder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		f             Folder
		parent, src   sql.NullInt64
		category, tag sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, path, parent_id, scan_source_id, ai_category, ai_tags
		FROM folders WHERE path_key = ? ORDER BY id LIMIT 1
	`, PathKey(path)).Scan(&f.ID, &f.Path, &parent, &src, &category, &tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		f.ParentID = &parent.Int64
	}
	if src.Valid {
		f.ScanSourceID = &src.Int64
	}
	f.AICategory = category.String
	f.AITags = tag.String
	return &f, nil
}

// DirectChildren lists the immediate subfolders of parentPath, sorted by
// name. It uses parent links when they are complete and falls back to a
// prefix scan for legacy databases; both return the same entries.
func (d *Database) DirectChildren(ctx context.Context, parentPath string) ([]ChildFolder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("direct_children", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var children []ChildFolder
	if d.parentLinksComplete.Load() {
		var parentID int64
		err = d.db.QueryRowContext(ctx,
			"SELECT id FROM folders WHERE path_key = ? ORDER BY id LIMIT 1", PathKey(parentPath),
		).Scan(&parentID)
		switch {
		case err == nil:
			children, err = d.childrenByParentID(ctx, parentID)
			return children, err
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
	}

	children, err = d.childrenByPrefix(ctx, parentPath)
	return children, err
}

func (d *Database) childrenByParentID(ctx context.Context, parentID int64) ([]ChildFolder, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.path, c.ai_category, c.ai_tags,
		       EXISTS(SELECT 1 FROM folders g WHERE g.parent_id = c.id) AS has_subdirs
		FROM folders c
		WHERE c.parent_id = ?
	`, parentID)
	if err != nil {
		return nil, err
	}
	return scanChildren(rows)
}

func (d *Database) childrenByPrefix(ctx context.Context, parentPath string) ([]ChildFolder, error) {
	key, n, prefix := prefixArgs(PathKey(parentPath))
	if key == "" {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT c.path, c.ai_category, c.ai_tags,
		       EXISTS(
		           SELECT 1 FROM folders g
		           WHERE substr(g.path_key, 1, length(c.path_key) + 1) = c.path_key || ?
		       ) AS has_subdirs
		FROM folders c
		WHERE substr(c.path_key, 1, ?) = ?
		  AND c.path_key != ?
		  AND instr(substr(c.path_key, ? + 1), ?) = 0
	`, Separator, n, prefix, key, n, Separator)
	if err != nil {
		return nil, err
	}
	return scanChildren(rows)
}

func scanChildren(rows *sql.Rows) ([]ChildFolder, error) {
	defer rows.Close()

	seen := make(map[string]bool)
	var children []ChildFolder
	for rows.Next() {
		var (
			path          string
			category, tag sql.NullString
			hasSubdirs    bool
		)
		if err := rows.Scan(&path, &category, &tag, &hasSubdirs); err != nil {
			return nil, err
		}

		name := BaseName(path)
		nameKey := strings.ToLower(name)
		if name == "" || seen[nameKey] {
			continue
		}
		seen[nameKey] = true

		children = append(children, ChildFolder{
			Name:       name,
			Path:       NormalizePath(path),
			HasSubdirs: hasSubdirs,
			AICategory: category.String,
			AITags:     tag.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(children, func(i, j int) bool {
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children, nil
}

// FolderIndexed reports whether path or anything below it has a folder row.
func (d *Database) FolderIndexed(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("folder_indexed", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	key, n, prefix := prefixArgs(PathKey(path))
	var found bool
	err = d.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM folders WHERE path_key = ? OR substr(path_key, 1, ?) = ?
		)
	`, key, n, prefix).Scan(&found)
	return found, err
}

// ClearSource removes every file record and folder at or below path and
// returns the number of deleted file records.
func (d *Database) ClearSource(ctx context.Context, path string) (int64, error) {
	start := time.Now()
	var deleted int64
	key, n, prefix := prefixArgs(PathKey(path))
	if key == "" {
		return 0, errors.New("empty source path")
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM files WHERE folder_id IN (
				SELECT id FROM folders WHERE path_key = ? OR substr(path_key, 1, ?) = ?
			)
		`, key, n, prefix)
		if err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
		deleted = recordRows("clear_source_files", res)

		res, err = tx.ExecContext(ctx, `
			DELETE FROM folders WHERE path_key = ? OR substr(path_key, 1, ?) = ?
		`, key, n, prefix)
		if err != nil {
			return fmt.Errorf("delete folders: %w", err)
		}
		recordRows("clear_source_folders", res)
		return nil
	})
	recordQuery("clear_source", start, err)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		d.mu.Lock()
		if _, vErr := d.db.ExecContext(ctx, "PRAGMA incremental_vacuum"); vErr != nil {
			log.Warn("Incremental vacuum after clearing %s failed: %v", path, vErr)
		}
		d.mu.Unlock()
	}

	log.Info("Cleared %d file records under %s", deleted, path)
	return deleted, nil
}

// UpdateFolderTags sets the classification tags of the folder at path.
func (d *Database) UpdateFolderTags(ctx context.Context, path, category, tags string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE folders SET ai_category = ?, ai_tags = ? WHERE path_key = ?",
			category, tags, PathKey(path),
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrFolderNotFound
		}
		return nil
	})
}

// checkParentLinks reports whether every folder with a parent path has its
// parent_id set.
func (d *Database) checkParentLinks(ctx context.Context) (bool, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT path FROM folders WHERE parent_id IS NULL")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return false, err
		}
		if ParentPath(path) != "" {
			return false, nil
		}
	}
	return true, rows.Err()
}

// ParentLinksComplete reports whether DirectChildren can use parent links.
func (d *Database) ParentLinksComplete() bool {
	return d.parentLinksComplete.Load()
}

// BackfillParentLinks sets parent_id on legacy folder rows, creating missing
// ancestors. It returns the number of rows linked.
func (d *Database) BackfillParentLinks(ctx context.Context) (int, error) {
	start := time.Now()
	var linked int

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, path FROM folders WHERE parent_id IS NULL")
		if err != nil {
			return err
		}

		type orphan struct {
			id   int64
			path string
		}
		var orphans []orphan
		for rows.Next() {
			var o orphan
			if err := rows.Scan(&o.id, &o.path); err != nil {
				rows.Close()
				return err
			}
			if ParentPath(o.path) != "" {
				orphans = append(orphans, o)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}

		cache := make(map[string]int64)
		for _, o := range orphans {
			pid, err := getOrCreateFolderTx(ctx, tx, ParentPath(o.path), nil, cache)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE folders SET parent_id = ? WHERE id = ?", pid, o.id); err != nil {
				return err
			}
			linked++
		}
		return nil
	})
	recordQuery("backfill_parent_links", start, err)
	if err != nil {
		return 0, err
	}

	d.parentLinksComplete.Store(true)
	if linked > 0 {
		log.Info("Backfilled parent links for %d folders in %v", linked, time.Since(start))
	}
	return linked, nil
}

// FolderContents returns the direct subfolders of path and one page of its
// direct files.
func (d *Database) FolderContents(ctx context.Context, path string, limit, offset int) (*FolderContents, error) {
	children, err := d.DirectChildren(ctx, path)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out := &FolderContents{
		Path:    NormalizePath(path),
		Subdirs: make([]SubdirEntry, 0, len(children)),
		Files:   []FileRecord{},
	}

	for _, c := range children {
		var count int
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM files f JOIN folders fo ON f.folder_id = fo.id
			WHERE fo.path_key = ?
		`, PathKey(c.Path)).Scan(&count)
		if err != nil {
			return nil, err
		}
		out.Subdirs = append(out.Subdirs, SubdirEntry{
			Name:       c.Name,
			Path:       c.Path,
			FileCount:  count,
			AICategory: c.AICategory,
			AITags:     c.AITags,
		})
	}

	var folderID int64
	err = d.db.QueryRowContext(ctx,
		"SELECT id FROM folders WHERE path_key = ? ORDER BY id LIMIT 1", PathKey(path),
	).Scan(&folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE folder_id = ? AND (is_dir = 0 OR is_dir IS NULL)", folderID,
	).Scan(&out.Total)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, fileSelect+`
		WHERE f.folder_id = ? AND (f.is_dir = 0 OR f.is_dir IS NULL)
		ORDER BY f.filename
		LIMIT ? OFFSET ?
	`, folderID, limit, offset)
	if err != nil {
		return nil, err
	}
	out.Files, err = scanFiles(rows)
	if err != nil {
		return nil, err
	}

	out.HasMore = offset+len(out.Files) < out.Total
	return out, nil
}

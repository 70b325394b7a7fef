package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

var (
	// ErrFolderNotFound is returned when a folder path has no row in the index.
	ErrFolderNotFound = errors.New("folder not found in index")
	// ErrMissingMtime is returned when a file record without an mtime is inserted.
	ErrMissingMtime = errors.New("file record has no mtime")
)

var log = logging.For("database")

// Database is the SQLite-backed folder index and watcher registry store.
//
// All writes are serialized through mu; reads run concurrently under WAL.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	// parentLinksComplete is false while legacy folder rows lack parent_id.
	parentLinksComplete atomic.Bool
}

// New opens (creating if needed) the database FILE at dbPath.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	log.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		log.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_auto_vacuum=incremental", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	complete, err := d.checkParentLinks(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to inspect folder hierarchy: %w", err)
	}
	d.parentLinksComplete.Store(complete)
	if !complete {
		log.Warn("Folder index has rows without parent links; using prefix queries until backfill completes")
	}

	log.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	if _, err = d.db.ExecContext(ctx, tableSchema); err != nil {
		return err
	}

	if err = d.runMigrations(ctx); err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, indexSchema)
	return err
}

// tableSchema creates missing tables. Columns added after the first release
// are also added by runMigrations for older files.
const tableSchema = `
	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		path_key TEXT,
		parent_id INTEGER,
		scan_source_id INTEGER,
		ai_category TEXT,
		ai_tags TEXT,
		FOREIGN KEY (parent_id) REFERENCES folders(id)
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		extension TEXT,
		folder_id INTEGER,
		size_bytes INTEGER,
		ctime INTEGER,
		mtime INTEGER,
		scan_time INTEGER,
		ai_category TEXT,
		ai_tags TEXT,
		is_dir INTEGER DEFAULT 0,
		FOREIGN KEY (folder_id) REFERENCES folders(id)
	);

	CREATE TABLE IF NOT EXISTS scan_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE,
		last_scan_time INTEGER,
		file_count INTEGER,
		total_size INTEGER
	);

	CREATE TABLE IF NOT EXISTS scan_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT,
		error_message TEXT,
		error_time INTEGER,
		scan_source TEXT,
		resolved INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS monitored_folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		path_key TEXT,
		last_mtime INTEGER,
		last_check_time INTEGER,
		is_local INTEGER DEFAULT 1,
		poll_interval_minutes INTEGER DEFAULT 15,
		enabled INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS watcher_config (
		key TEXT PRIMARY KEY,
		value TEXT
	);
`

const indexSchema = `
	CREATE INDEX IF NOT EXISTS idx_folder_path ON folders(path);
	CREATE INDEX IF NOT EXISTS idx_folder_path_key ON folders(path_key);
	CREATE INDEX IF NOT EXISTS idx_folder_parent ON folders(parent_id);

	CREATE INDEX IF NOT EXISTS idx_filename ON files(filename);
	CREATE INDEX IF NOT EXISTS idx_extension ON files(extension);
	CREATE INDEX IF NOT EXISTS idx_folder_id ON files(folder_id);
	CREATE INDEX IF NOT EXISTS idx_ai_category ON files(ai_category);
	CREATE INDEX IF NOT EXISTS idx_is_dir ON files(is_dir);
	CREATE INDEX IF NOT EXISTS idx_folder_isdir ON files(folder_id, is_dir);

	CREATE INDEX IF NOT EXISTS idx_error_path ON scan_errors(file_path);
	CREATE INDEX IF NOT EXISTS idx_error_source ON scan_errors(scan_source);

	CREATE INDEX IF NOT EXISTS idx_monitored_path ON monitored_folders(path);
	CREATE INDEX IF NOT EXISTS idx_monitored_path_key ON monitored_folders(path_key);
`

// runMigrations brings databases written by older versions up to date.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: hierarchy and classification columns
	for _, m := range []struct{ table, col string }{
		{"folders", "parent_id INTEGER"},
		{"folders", "ai_category TEXT"},
		{"folders", "ai_tags TEXT"},
		{"files", "ai_category TEXT"},
		{"files", "ai_tags TEXT"},
		{"files", "is_dir INTEGER DEFAULT 0"},
	} {
		if err := d.addColumnIfMissing(ctx, m.table, m.col); err != nil {
			return err
		}
	}

	// Migration 2: case-folded lookup keys
	for _, table := range []string{"folders", "monitored_folders"} {
		if err := d.addColumnIfMissing(ctx, table, "path_key TEXT"); err != nil {
			return err
		}
		if err := d.fillPathKeys(ctx, table); err != nil {
			return fmt.Errorf("failed to compute %s path keys: %w", table, err)
		}
	}

	// Migration 3: one record per (folder_id, filename)
	var uniqueExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0 FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_files_folder_filename'
	`).Scan(&uniqueExists)
	if err != nil {
		return fmt.Errorf("failed to check for files unique index: %w", err)
	}

	if !uniqueExists {
		res, err := d.db.ExecContext(ctx, `
			DELETE FROM files WHERE id NOT IN (
				SELECT MAX(id) FROM files GROUP BY folder_id, filename
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to deduplicate file records: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Info("Migrating database: removed %d duplicate file records", n)
		}

		if _, err := d.db.ExecContext(ctx,
			"CREATE UNIQUE INDEX idx_files_folder_filename ON files(folder_id, filename)"); err != nil {
			return fmt.Errorf("failed to create files unique index: %w", err)
		}
	}

	return nil
}

func (d *Database) addColumnIfMissing(ctx context.Context, table, colDef string) error {
	name, _, _ := strings.Cut(colDef, " ")

	var columnExists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?", table, name,
	).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for %s.%s column: %w", table, name, err)
	}
	if columnExists {
		return nil
	}

	log.Info("Migrating database: adding %s column to %s table", name, table)
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, colDef)); err != nil {
		return fmt.Errorf("failed to add %s.%s column: %w", table, name, err)
	}
	return nil
}

// fillPathKeys computes path_key for rows that lack one.
// SQLite's lower() only folds ASCII, so keys are computed here.
func (d *Database) fillPathKeys(ctx context.Context, table string) error {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT id, path FROM %s WHERE path_key IS NULL", table))
	if err != nil {
		return err
	}

	type row struct {
		id   int64
		path string
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.path); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	if len(pending) == 0 {
		return nil
	}

	log.Info("Migrating database: computing %d path keys in %s", len(pending), table)
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET path_key = ? WHERE id = ?", table))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range pending {
			if _, err := stmt.ExecContext(ctx, PathKey(r.path), r.id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// withTx runs fn in a write transaction under the store's write lock.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		duration := time.Since(start).Seconds()
		if p := recover(); p != nil {
			_ = tx.Rollback()
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
			panic(p)
		}
		if err != nil {
			metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return
		}
		metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// Optimize runs VACUUM and ANALYZE and reports the file size change.
func (d *Database) Optimize(ctx context.Context) (OptimizeResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("optimize", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	before := fileSize(d.dbPath)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err = d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return OptimizeResult{}, err
	}
	if _, err = d.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return OptimizeResult{}, err
	}

	after := fileSize(d.dbPath)
	return OptimizeResult{SizeBefore: before, SizeAfter: after, Saved: before - after}, nil
}

// Analyze refreshes query planner statistics; cheap enough to run after each scan.
func (d *Database) Analyze(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, "ANALYZE")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

func recordRows(operation string, res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	if n > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(n))
	}
	return n
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	log.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		log.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			log.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
			if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
				log.Error("Failed to fix permissions on %s: %v", p, chmodErr)
			} else {
				log.Info("Fixed permissions on %s", p)
			}
		}
	}

	return nil
}

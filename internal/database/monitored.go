package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMonitoredExists is returned when a monitored folder path is already registered.
var ErrMonitoredExists = errors.New("monitored folder already exists")

const monitoredSelect = `
	SELECT id, path, last_mtime, last_check_time, COALESCE(is_local, 1),
	       COALESCE(poll_interval_minutes, 15), COALESCE(enabled, 1)
	FROM monitored_folders
`

func scanMonitored(rows *sql.Rows) ([]MonitoredFolder, error) {
	defer rows.Close()

	out := []MonitoredFolder{}
	for rows.Next() {
		m, err := scanMonitoredRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitoredRow(r rowScanner) (*MonitoredFolder, error) {
	var (
		m                    MonitoredFolder
		lastMtime, lastCheck sql.NullInt64
		isLocal, enabled     int
	)
	if err := r.Scan(&m.ID, &m.Path, &lastMtime, &lastCheck, &isLocal, &m.PollIntervalMinutes, &enabled); err != nil {
		return nil, err
	}
	if lastMtime.Valid && lastMtime.Int64 != 0 {
		t := time.Unix(0, lastMtime.Int64)
		m.LastMtime = &t
	}
	if lastCheck.Valid && lastCheck.Int64 != 0 {
		t := time.Unix(0, lastCheck.Int64)
		m.LastCheckTime = &t
	}
	m.IsLocal = isLocal != 0
	m.Enabled = enabled != 0
	return &m, nil
}

// InsertMonitoredFolder registers m.Path. It returns ErrMonitoredExists when
// an equivalent path is already present.
func (d *Database) InsertMonitoredFolder(ctx context.Context, m MonitoredFolder) (*MonitoredFolder, error) {
	start := time.Now()
	m.Path = NormalizePath(m.Path)
	key := strings.ToLower(m.Path)

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM monitored_folders WHERE path_key = ?)", key,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrMonitoredExists
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO monitored_folders (path, path_key, is_local, poll_interval_minutes, enabled)
			VALUES (?, ?, ?, ?, ?)
		`, m.Path, key, boolInt(m.IsLocal), m.PollIntervalMinutes, boolInt(m.Enabled))
		if err != nil {
			return err
		}
		m.ID, err = res.LastInsertId()
		return err
	})
	recordQuery("monitored_folders", start, err)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MonitoredFolders returns all registrations in registration order.
func (d *Database) MonitoredFolders(ctx context.Context) ([]MonitoredFolder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, monitoredSelect+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	return scanMonitored(rows)
}

// MonitoredFolder returns the registration with id, or nil when absent.
func (d *Database) MonitoredFolder(ctx context.Context, id int64) (*MonitoredFolder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, err := scanMonitoredRow(d.db.QueryRowContext(ctx, monitoredSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// MonitoredFolderByPath returns the registration for an equivalent path, or nil.
func (d *Database) MonitoredFolderByPath(ctx context.Context, path string) (*MonitoredFolder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, err := scanMonitoredRow(d.db.QueryRowContext(ctx, monitoredSelect+" WHERE path_key = ?", PathKey(path)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// UpdateMonitoredFolder persists the interval and enabled flag of m.
func (d *Database) UpdateMonitoredFolder(ctx context.Context, m MonitoredFolder) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE monitored_folders SET poll_interval_minutes = ?, enabled = ? WHERE id = ?
		`, m.PollIntervalMinutes, boolInt(m.Enabled), m.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("monitored folder %d: %w", m.ID, sql.ErrNoRows)
		}
		return nil
	})
}

// SetMonitoredMtime stores the directory mtime and check time of a registration.
func (d *Database) SetMonitoredMtime(ctx context.Context, id int64, mtime, checked time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE monitored_folders SET last_mtime = ?, last_check_time = ? WHERE id = ?",
			toNanos(mtime), toNanos(checked), id,
		)
		return err
	})
}

// DeleteMonitoredFolders removes registrations by id and returns how many went.
func (d *Database) DeleteMonitoredFolders(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var removed int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, "DELETE FROM monitored_folders WHERE id = ?", id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	return removed, err
}

// ConfigValue reads one watcher_config key. ok is false when it is absent.
func (d *Database) ConfigValue(ctx context.Context, key string) (value string, ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("watcher_settings", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var v sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM watcher_config WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.String, true, nil
}

// SetConfigValue writes one watcher_config key.
func (d *Database) SetConfigValue(ctx context.Context, key, value string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO watcher_config (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		return err
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/ignore"
	"file-recorder/internal/logging"
	"file-recorder/internal/metrics"
	"file-recorder/internal/workers"
)

var log = logging.For("scanner")

// Store is the part of the folder index the scanner writes to.
type Store interface {
	GetOrCreateFolder(ctx context.Context, path string) (int64, error)
	InsertFiles(ctx context.Context, records []database.FileRecord, sourceID *int64) (int, error)
	UpsertScanSource(ctx context.Context, path string, scanTime time.Time, fileCount, totalSize int64) (int64, error)
	InsertScanError(ctx context.Context, filePath, message, source string) error
	ClearErrors(ctx context.Context, source string) error
	ClearSource(ctx context.Context, path string) (int64, error)
}

// Config configures the parallel walk.
type Config struct {
	// NumWorkers is the number of goroutines reading entry metadata.
	NumWorkers int
	// BatchSize is the number of records written per transaction.
	BatchSize int
	// ChannelBuffer is the size of the job and result channels.
	ChannelBuffer int
	// Retry is used for every directory read and stat.
	Retry filesystem.RetryConfig
	// Throttle, when set, is consulted before every directory read.
	Throttle Throttle
}

// Throttle holds a scan back, e.g. under memory pressure.
type Throttle interface {
	Wait(ctx context.Context) error
}

// DefaultConfig returns defaults sized for the available CPUs. The worker
// count can be pinned with SCAN_WORKERS.
func DefaultConfig() Config {
	return Config{
		NumWorkers:    workers.ForIO(8),
		BatchSize:     500,
		ChannelBuffer: 1000,
		Retry:         filesystem.DefaultRetryConfig(),
	}
}

// Result summarizes one scan.
type Result struct {
	Root       string        `json:"root"`
	FileCount  int64         `json:"fileCount"`
	DirCount   int64         `json:"dirCount"`
	ErrorCount int64         `json:"errorCount"`
	TotalSize  int64         `json:"totalSize"`
	Cancelled  bool          `json:"cancelled"`
	Duration   time.Duration `json:"duration"`
}

// Scanner indexes directory trees.
type Scanner struct {
	store  Store
	config Config
}

// New creates a scanner. Zero config fields take their defaults.
func New(store Store, config Config) *Scanner {
	def := DefaultConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = def.ChannelBuffer
	}
	if config.Retry == (filesystem.RetryConfig{}) {
		config.Retry = def.Retry
	}
	return &Scanner{store: store, config: config}
}

// Rescan replaces the indexed tree of root with a fresh scan.
func (s *Scanner) Rescan(ctx context.Context, root string) (Result, error) {
	if _, err := s.store.ClearSource(ctx, root); err != nil {
		return Result{Root: root}, fmt.Errorf("clear %s: %w", root, err)
	}
	return s.Scan(ctx, root)
}

type job struct {
	path   string
	folder string
	entry  fs.DirEntry
}

type result struct {
	record *database.FileRecord
	path   string
	err    error
}

// Scan walks root and upserts its entries into the index. The returned
// error is only set when root itself cannot be read or the index cannot be
// written; unreadable entries are counted in Result.ErrorCount.
func (s *Scanner) Scan(ctx context.Context, root string) (Result, error) {
	root = database.NormalizePath(root)
	res := Result{Root: root}
	start := time.Now()

	info, err := filesystem.StatWithRetry(root, s.config.Retry)
	if err != nil {
		metrics.ScannerRunsTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("scan %s: %s: %w", root, filesystem.ClassifyError(err), err)
	}
	if !info.IsDir() {
		metrics.ScannerRunsTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("scan %s: not a directory", root)
	}

	// Writes use a context that survives cancellation so a cancelled scan
	// still stores what it has collected.
	writeCtx := context.WithoutCancel(ctx)

	if err := s.store.ClearErrors(writeCtx, root); err != nil {
		log.Warn("Failed to clear previous scan errors of %s: %v", root, err)
	}
	sourceID, err := s.store.UpsertScanSource(writeCtx, root, start, 0, 0)
	if err != nil {
		metrics.ScannerRunsTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("register scan source %s: %w", root, err)
	}
	if _, err := s.store.GetOrCreateFolder(writeCtx, root); err != nil {
		metrics.ScannerRunsTotal.WithLabelValues("failed").Inc()
		return res, fmt.Errorf("create root folder %s: %w", root, err)
	}

	log.Info("Scanning %s with %d workers", root, s.config.NumWorkers)
	metrics.ScannerParallelWorkers.Set(float64(s.config.NumWorkers))

	w := &walk{
		ctx:     ctx,
		scanner: s,
		skip:    ignore.NewScanMatcher(root),
		root:    root,
		jobs:    make(chan job, s.config.ChannelBuffer),
		results: make(chan result, s.config.ChannelBuffer),
	}

	for i := 0; i < s.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	collected := make(chan error, 1)
	go func() {
		collected <- s.collect(writeCtx, root, sourceID, w.results, &res)
	}()

	walkErr := w.walkDir(root)
	close(w.jobs)
	w.wg.Wait()
	close(w.results)
	writeErr := <-collected

	res.Cancelled = ctx.Err() != nil
	res.Duration = time.Since(start)

	if _, err := s.store.UpsertScanSource(writeCtx, root, start, res.FileCount, res.TotalSize); err != nil {
		log.Warn("Failed to update scan source %s: %v", root, err)
	}

	metrics.ScannerLastRunDuration.Set(res.Duration.Seconds())
	switch {
	case writeErr != nil || walkErr != nil:
		metrics.ScannerRunsTotal.WithLabelValues("failed").Inc()
	case res.Cancelled:
		metrics.ScannerRunsTotal.WithLabelValues("cancelled").Inc()
	default:
		metrics.ScannerRunsTotal.WithLabelValues("completed").Inc()
	}

	log.Info("Scan of %s finished: %d files, %d folders, %d errors in %v (cancelled: %v)",
		root, res.FileCount, res.DirCount, res.ErrorCount, res.Duration.Round(time.Millisecond), res.Cancelled)

	if writeErr != nil {
		return res, writeErr
	}
	if walkErr != nil {
		return res, fmt.Errorf("scan %s: %w", root, walkErr)
	}
	return res, nil
}

// collect batches records into the store and records entry errors.
func (s *Scanner) collect(ctx context.Context, root string, sourceID int64, results <-chan result, res *Result) error {
	batch := make([]database.FileRecord, 0, s.config.BatchSize)
	var writeErr error

	flush := func() {
		if len(batch) == 0 || writeErr != nil {
			batch = batch[:0]
			return
		}
		if _, err := s.store.InsertFiles(ctx, batch, &sourceID); err != nil {
			writeErr = fmt.Errorf("write batch under %s: %w", root, err)
		}
		batch = batch[:0]
	}

	for r := range results {
		metrics.ScannerEntriesProcessed.Inc()

		if r.err != nil {
			res.ErrorCount++
			metrics.ScannerEntryErrors.Inc()
			msg := fmt.Sprintf("%s: %v", filesystem.ClassifyError(r.err), r.err)
			if err := s.store.InsertScanError(ctx, r.path, msg, root); err != nil {
				log.Warn("Failed to record scan error for %s: %v", r.path, err)
			}
			continue
		}

		if r.record == nil {
			continue
		}
		if r.record.IsDir {
			res.DirCount++
		} else {
			res.FileCount++
			res.TotalSize += r.record.Size
		}

		batch = append(batch, *r.record)
		if len(batch) >= s.config.BatchSize {
			flush()
		}
	}
	flush()
	return writeErr
}

// walk is the state of one parallel scan.
type walk struct {
	ctx     context.Context
	scanner *Scanner
	skip    *ignore.Matcher
	jobs    chan job
	results chan result
	wg      sync.WaitGroup
	root    string
}

// walkDir reads dir and queues its entries, descending into subdirectories.
// Only a failure to read the root is returned.
func (w *walk) walkDir(dir string) error {
	if w.ctx.Err() != nil {
		return nil
	}
	if t := w.scanner.config.Throttle; t != nil {
		if err := t.Wait(w.ctx); err != nil {
			return nil
		}
	}

	entries, err := filesystem.ReadDirWithRetry(dir, w.scanner.config.Retry)
	if err != nil {
		if dir == w.root {
			return err
		}
		w.emit(result{path: dir, err: err})
		return nil
	}

	for _, entry := range entries {
		path := database.JoinPath(dir, entry.Name())
		if w.skip.ShouldIgnore(path, entry.IsDir()) {
			continue
		}

		select {
		case w.jobs <- job{path: path, folder: dir, entry: entry}:
		case <-w.ctx.Done():
			return nil
		}

		if entry.IsDir() {
			if err := w.walkDir(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walk) emit(r result) {
	select {
	case w.results <- r:
	case <-w.ctx.Done():
	}
}

// worker turns queued entries into records.
func (w *walk) worker() {
	defer w.wg.Done()

	for j := range w.jobs {
		if w.ctx.Err() != nil {
			continue
		}
		w.emit(w.process(j))
	}
}

func (w *walk) process(j job) result {
	info, err := j.entry.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between the directory read and the stat.
			err = fmt.Errorf("vanished during scan: %w", err)
		}
		return result{path: j.path, err: err}
	}

	if !info.IsDir() && !info.Mode().IsRegular() {
		// Symlinks, devices and sockets are not indexed.
		return result{path: j.path}
	}

	rec := &database.FileRecord{
		Filename:   info.Name(),
		FolderPath: j.folder,
		Mtime:      info.ModTime(),
		IsDir:      info.IsDir(),
	}
	if !rec.IsDir {
		rec.Size = info.Size()
	}
	return result{record: rec, path: j.path}
}

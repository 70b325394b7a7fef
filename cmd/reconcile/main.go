package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/reconciler"
	"file-recorder/internal/registry"
	"file-recorder/internal/scanner"
	"file-recorder/internal/startup"

	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "./data"

	exitChanged = 2
)

// cli bundles the components and terminal streams a command works with.
type cli struct {
	db   *database.Database
	reg  *registry.Registry
	rec  *reconciler.Reconciler
	scan *scanner.Scanner

	in          *bufio.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	assumeYes := hasFlag(os.Args[2:], "-y", "--yes")

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, startup.DatabaseFile)

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: No database at %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	reg := registry.New(db)
	c := &cli{
		db:          db,
		reg:         reg,
		rec:         reconciler.New(reg, db),
		scan:        scanner.New(db, scanner.DefaultConfig()),
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}

	code := 0
	switch command {
	case "check":
		changed, ok := c.check(ctx)
		switch {
		case !ok:
			code = 1
		case changed > 0:
			code = exitChanged
		}
	case "accept":
		if !c.accept(ctx, assumeYes) {
			code = 1
		}
	case "status":
		if !c.status(ctx) {
			code = 1
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		code = 1
	}

	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
	os.Exit(code)
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

// sanitizeCommand replaces every character outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("File Recorder Reconciliation")
	fmt.Println("")
	fmt.Println("Usage: reconcile <command> [--yes]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  check   - Report monitored folders that changed since the last scan")
	fmt.Println("  accept  - Rescan changed folders into the index")
	fmt.Println("  status  - Show watcher settings and monitored folders")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

// compare runs the reconciler and prints its report. ok is false when the
// comparison itself failed.
func (c *cli) compare(ctx context.Context) (changed []reconciler.FolderChange, ok bool) {
	if !c.reg.Enabled(ctx) {
		fmt.Fprintln(c.out, "Folder watching is disabled; nothing to reconcile.")
		return nil, true
	}

	changed, failed, err := c.rec.CheckAll(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: Reconciliation failed: %v\n", err)
		return nil, false
	}

	for _, f := range failed {
		fmt.Fprintf(c.out, "ERROR    %s: %s\n", f.Folder.Path, f.ErrorMessage)
	}
	for _, ch := range changed {
		fmt.Fprintf(c.out, "CHANGED  %s (%s)\n", ch.Folder.Path, ch.Summary())
		for _, fc := range ch.FileChanges {
			fmt.Fprintf(c.out, "           %s %s\n", fc.Type, fc.Path)
		}
	}
	if len(changed) == 0 && len(failed) == 0 {
		fmt.Fprintln(c.out, "All monitored folders match the index.")
	}
	return changed, true
}

func (c *cli) check(ctx context.Context) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	changed, ok := c.compare(ctx)
	return len(changed), ok
}

// accept rescans every changed folder the user confirms. Without a terminal
// the user must pass --yes.
func (c *cli) accept(ctx context.Context, assumeYes bool) bool {
	changed, ok := c.compare(ctx)
	if !ok {
		return false
	}
	if len(changed) == 0 {
		return true
	}

	if !assumeYes && !c.interactive {
		fmt.Fprintln(c.errOut, "Error: stdin is not a terminal; pass --yes to accept all changes")
		return false
	}

	success := true
	for _, ch := range changed {
		path := ch.Folder.Path
		if !assumeYes && !c.confirm(fmt.Sprintf("Rescan %s (%s)? [y/N]: ", path, ch.Summary())) {
			fmt.Fprintf(c.out, "Skipped %s\n", path)
			continue
		}

		res, err := c.scan.Rescan(ctx, path)
		if err != nil {
			fmt.Fprintf(c.errOut, "Error: Failed to rescan %s: %v\n", path, err)
			success = false
			continue
		}
		if res.Cancelled {
			fmt.Fprintf(c.errOut, "Rescan of %s was cancelled\n", path)
			return false
		}
		if err := c.reg.RefreshMtime(ctx, path); err != nil {
			fmt.Fprintf(c.errOut, "Error: Failed to record mtime of %s: %v\n", path, err)
			success = false
			continue
		}
		fmt.Fprintf(c.out, "Rescanned %s: %d files, %d folders, %d errors\n", path, res.FileCount, res.DirCount, res.ErrorCount)
	}
	return success
}

func (c *cli) confirm(prompt string) bool {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(c.out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (c *cli) status(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	settings, err := c.reg.Settings(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: Failed to read settings: %v\n", err)
		return false
	}
	folders, err := c.reg.Folders(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: Failed to list monitored folders: %v\n", err)
		return false
	}

	stats, err := c.db.Stats(ctx)
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: Failed to read index statistics: %v\n", err)
		return false
	}

	fmt.Fprintf(c.out, "Index:         %d files, %d folders, %s\n", stats.TotalFiles, stats.TotalFolders, formatSize(stats.TotalSize))
	fmt.Fprintf(c.out, "Scan errors:   %d unresolved\n", stats.UnresolvedErrors)
	fmt.Fprintf(c.out, "Watching:      %s\n", onOff(settings.Enabled))
	fmt.Fprintf(c.out, "Silent update: %s\n", onOff(settings.SilentUpdate))
	fmt.Fprintf(c.out, "Poll interval: %d min (default)\n", settings.DefaultPollIntervalMinutes)
	fmt.Fprintf(c.out, "Folders:       %d\n", len(folders))

	for _, f := range folders {
		kind := "local"
		if !f.IsLocal {
			kind = fmt.Sprintf("network, every %d min", f.PollIntervalMinutes)
		}
		mtime := "never scanned"
		if f.LastMtime != nil {
			mtime = f.LastMtime.Local().Format(time.RFC3339)
		}
		state := ""
		if !f.Enabled {
			state = " [disabled]"
		}
		fmt.Fprintf(c.out, "  %4d  %s (%s) mtime %s%s\n", f.ID, f.Path, kind, mtime, state)
	}
	return true
}

func formatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

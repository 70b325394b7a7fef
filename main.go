package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"file-recorder/internal/database"
	"file-recorder/internal/filesystem"
	"file-recorder/internal/handlers"
	"file-recorder/internal/logging"
	"file-recorder/internal/memory"
	"file-recorder/internal/metrics"
	"file-recorder/internal/middleware"
	"file-recorder/internal/reconciler"
	"file-recorder/internal/registry"
	"file-recorder/internal/scanner"
	"file-recorder/internal/startup"
	"file-recorder/internal/watcher"

	"github.com/gorilla/mux"
)

const metricsInterval = time.Minute

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(config.NetworkMounts))
	if config.MetricsEnabled {
		filesystem.SetObserver(metrics.NewFilesystemObserver())
		metrics.InitializeMetrics()
	}

	// Derive GOMEMLIMIT before the database allocates its caches
	memory.ConfigureFromEnv()
	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	reg := registry.New(db)
	if config.SeedFile != "" {
		added, err := applySeed(ctx, reg, config.SeedFile)
		startup.LogSeedApplied(config.SeedFile, added, err)
	}

	// Rescan queue
	scanConfig := scanner.DefaultConfig()
	scanConfig.Throttle = memMonitor
	queue := scanner.NewQueue(scanner.New(db, scanConfig), func(ctx context.Context) bool {
		settings, err := reg.Settings(ctx)
		return err == nil && settings.SilentUpdate
	})
	queue.Start(ctx)

	rescan := func(path, reason string) {
		queue.Enqueue(path, reason, handlers.RefreshAfterScan(reg, path))
	}

	rec := reconciler.New(reg, db)
	if config.ReconcileOnStart && reg.Enabled(ctx) {
		runStartupReconcile(ctx, rec, config.AutoRescan, rescan)
	}

	// Watcher manager
	mgr := watcher.NewManager(reg, watcher.Options{
		Backend:          watcher.NewFSNotifyBackend(),
		DebounceInterval: config.DebounceInterval,
		Rescan: func(path string) {
			rescan(path, "watcher")
		},
	})

	// Subscribe before starting so the initial status lands in the event log
	h := handlers.New(db, reg, mgr, queue, rec)

	if err := mgr.Start(ctx); err != nil {
		logging.Error("Failed to start folder watcher: %v", err)
	}
	info := mgr.StatusInfo()
	startup.LogWatcherStarted(len(info.LocalPaths), len(info.NetworkPaths), info.Status.Message)

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&dbStatsAdapter{db: db}, metricsInterval)
		collector.Start()
	}

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, h, mgr, queue, memMonitor, collector)
		cancel()
		close(done)
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	if metricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Watcher
	api.HandleFunc("/watcher/status", h.GetWatcherStatus).Methods("GET")
	api.HandleFunc("/watcher/events", h.GetWatcherEvents).Methods("GET")
	api.HandleFunc("/watcher/restart", h.RestartWatcher).Methods("POST")
	api.HandleFunc("/watcher/settings", h.GetWatcherSettings).Methods("GET")
	api.HandleFunc("/watcher/settings", h.UpdateWatcherSettings).Methods("PUT")

	// Monitored folders
	api.HandleFunc("/monitored", h.ListMonitored).Methods("GET")
	api.HandleFunc("/monitored", h.AddMonitored).Methods("POST")
	api.HandleFunc("/monitored/conflicts", h.MonitoredConflicts).Methods("GET")
	api.HandleFunc("/monitored/lookup", h.LookupMonitored).Methods("GET")
	api.HandleFunc("/monitored/{id:[0-9]+}", h.UpdateMonitored).Methods("PATCH")
	api.HandleFunc("/monitored/{id:[0-9]+}", h.RemoveMonitored).Methods("DELETE")

	// Folder index
	api.HandleFunc("/index/children", h.GetChildren).Methods("GET")
	api.HandleFunc("/index/contents", h.GetContents).Methods("GET")
	api.HandleFunc("/index/sources", h.GetSources).Methods("GET")
	api.HandleFunc("/index/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/index/errors", h.GetErrors).Methods("GET")
	api.HandleFunc("/index/errors/{id:[0-9]+}/resolve", h.ResolveError).Methods("POST")
	api.HandleFunc("/index/source", h.DeleteSource).Methods("DELETE")
	api.HandleFunc("/index/rescan", h.TriggerRescan).Methods("POST")
	api.HandleFunc("/index/optimize", h.Optimize).Methods("POST")

	// Reconciliation
	api.HandleFunc("/reconcile", h.RunReconcile).Methods("GET")
	api.HandleFunc("/reconcile/confirm", h.ConfirmReconcile).Methods("POST")

	return r
}

func applySeed(ctx context.Context, reg *registry.Registry, path string) (int, error) {
	seed, err := registry.LoadSeed(path)
	if err != nil {
		return 0, err
	}
	return reg.ApplySeed(ctx, seed)
}

// runStartupReconcile compares every enabled monitored folder against the
// index. Changed folders are only rescanned when autoRescan is set; otherwise
// they stay pending until confirmed through the API or cmd/reconcile.
func runStartupReconcile(ctx context.Context, rec *reconciler.Reconciler, autoRescan bool, rescan func(path, reason string)) {
	start := time.Now()
	changed, failed, err := rec.CheckAll(ctx)
	if err != nil {
		logging.Error("Startup reconciliation failed: %v", err)
		return
	}
	startup.LogReconcileReport(changed, failed, time.Since(start))

	if !autoRescan {
		return
	}
	for _, c := range changed {
		rescan(c.Folder.Path, "startup")
	}
}

// dbStatsAdapter exposes database totals to the metrics collector.
type dbStatsAdapter struct {
	db *database.Database
}

func (a *dbStatsAdapter) IndexStats() (metrics.Stats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := a.db.Stats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalFiles:        stats.TotalFiles,
		TotalFolders:      stats.TotalFolders,
		TotalSize:         stats.TotalSize,
		UnresolvedErrors:  stats.UnresolvedErrors,
		OpenDBConnections: a.db.OpenConnections(),
	}, nil
}

func handleShutdown(srv *http.Server, h *handlers.Handlers, mgr *watcher.Manager, queue *scanner.Queue, memMonitor *memory.Monitor, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	h.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping folder watcher")
	mgr.Stop()
	startup.LogShutdownStepComplete("Folder watcher stopped")

	startup.LogShutdownStep("Stopping rescan queue")
	queue.Stop()
	startup.LogShutdownStepComplete("Rescan queue stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}

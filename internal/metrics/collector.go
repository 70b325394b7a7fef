package metrics

import (
	"time"

	"file-recorder/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	IndexStats() (Stats, error)
}

// Stats holds the index totals exported as gauges
type Stats struct {
	TotalFiles        int64
	TotalFolders      int64
	TotalSize         int64
	UnresolvedErrors  int64
	OpenDBConnections int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.IndexStats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	IndexFilesTotal.Set(float64(stats.TotalFiles))
	IndexFoldersTotal.Set(float64(stats.TotalFolders))
	IndexSizeBytes.Set(float64(stats.TotalSize))
	IndexUnresolvedErrors.Set(float64(stats.UnresolvedErrors))
	DBConnectionsOpen.Set(float64(stats.OpenDBConnections))

	logging.Debug("Metrics collected: files=%d, folders=%d, size=%d, errors=%d",
		stats.TotalFiles, stats.TotalFolders, stats.TotalSize, stats.UnresolvedErrors)
}

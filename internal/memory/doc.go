// Package memory keeps the service inside its container memory limit.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT (typically
// injected through the Kubernetes Downward API) and MEMORY_RATIO. An
// explicit GOMEMLIMIT always wins.
//
// A [Monitor] samples heap usage against that limit. Once usage crosses the
// critical water mark, [Monitor.Wait] blocks the scanner before it reads the
// next directory, and releases it when usage drops below the high water
// mark. Indexing a very large tree therefore slows down instead of getting
// the process OOM-killed.
//
//	memory.ConfigureFromEnv()
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	cfg := scanner.DefaultConfig()
//	cfg.Throttle = monitor
package memory

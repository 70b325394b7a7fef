/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports the host's CPUs even when a cgroup limit applies,
while GOMAXPROCS follows the container limit. Worker counts are therefore
derived from GOMAXPROCS:

	// Directory walking is I/O-bound: 2 workers per CPU, at most 8
	n := workers.ForIO(8)

Operators can pin the count with the SCAN_WORKERS environment variable,
which is useful on slow network shares where parallel directory reads
hurt more than they help:

	SCAN_WORKERS=2
*/
package workers

/*
Package filesystem provides volume classification and resilient filesystem
operations for monitored folders.

# Volumes

Every path is either local or network. UNC-shaped paths (\\server\share,
//server/share) are always network; additional network mount points can be
registered with SetDefaultVolumeResolver. Local folders are watched through
OS notifications, network folders are polled.

# Retries

StatWithRetry and ReadDirWithRetry retry transient errors (ESTALE, timeouts,
unreachable hosts) with exponential backoff:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately. ClassifyError turns an error into one of
the reasons reported for unreachable folders: "permission denied",
"not found" or "network or I/O error".

Retry metrics are recorded through an Observer, installed at startup by the
metrics package.
*/
package filesystem

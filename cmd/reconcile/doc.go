// Command reconcile compares monitored folders with the folder index from
// the command line, without a running server.
//
// It supports the following operations:
//   - check: Report monitored folders whose contents drifted from the index
//   - accept: Rescan changed folders and record their current mtime
//   - status: Show watcher settings and the monitored folder list
//
// Usage:
//
//	reconcile <command> [--yes]
//
// Commands:
//
//	check   Compare every enabled monitored folder with the index and print
//	        the added, deleted and modified files. Exits with status 2 when
//	        at least one folder changed.
//
//	accept  Run the same comparison, then rescan each changed folder into the
//	        index. On a terminal every folder is confirmed interactively;
//	        otherwise --yes is required.
//
//	status  Display the watcher settings and every monitored folder with its
//	        recorded mtime.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: ./data)
//
// Notes:
//
// The command opens the same SQLite database as the server and can run while
// the server is up.
package main

// Package main starts the slcache daemon: it loads configuration, holds the
// single-instance lock, serves the IPC socket, and runs scheduled eviction
// passes until interrupted.
package main

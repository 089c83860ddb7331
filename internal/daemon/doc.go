// Package daemon coordinates the long-running slcache process.
//
// It wires configuration, the disk cache, the purge scheduler, the purge
// journal, and metrics into a single lifecycle with flock-based locking to
// prevent two processes from evicting the same cache root. The cache is
// initialized (version check, legacy cleanup, layout, static seeding)
// synchronously before the scheduler starts.
//
// Keep orchestration logic here: cache semantics live in diskcache while the
// daemon focuses on startup, shutdown, and the operations exposed over IPC
// and HTTP.
package daemon

// Package main hosts the slcache CLI entrypoint and command graph.
//
// Cache maintenance commands (stats, purge, clear, seed, history) talk to the
// daemon over its IPC socket and fall back to operating on the cache directory
// directly when no daemon is running, holding the daemon lock while they do.
// Entry commands always work on the directory: entries are plain files and the
// cache contract tolerates concurrent readers and writers.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

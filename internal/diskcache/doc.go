// Package diskcache stores opaque asset blobs on disk, keyed by asset ID, and
// keeps their total size under a byte budget.
//
// # Layout
//
// Entries live at <root>/<shard>/<id>.sl_cache where shard is the first hex
// character of the ID, giving 16 shard directories. The filesystem is the only
// index: sizes and recency come from stat, and reads refresh an entry's
// modification time (at most once per touch window, one hour by default).
//
// # Eviction
//
// Purge walks the root, orders entries newest first and deletes everything
// past the point where the running total exceeds the budget. Keys in the skip
// set (static assets seeded at Init) are never deleted; their mtime is bumped
// instead. Purge does not coordinate with readers or writers. A file removed
// while open stays readable on POSIX systems, and an open that loses the race
// reads as a cache miss.
//
// A Scheduler runs Purge on a fixed interval until stopped.
//
// # Contract
//
// The entry operations never return errors: failures read as false or zero
// and callers treat them as a miss. RenameStrict, Purge, Clear and Init return
// errors for the daemon and CLI.
package diskcache

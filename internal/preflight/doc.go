// Package preflight provides readiness checks for the filesystem paths and
// listeners the cache daemon depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failed check. Failures
//     are not fatal: the cache degrades to misses instead of refusing to start.
//   - The CLI "slcache daemon status" command renders the same results.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight

// Package purgelog records eviction passes in a SQLite journal so operators
// can review how the cache budget has been enforced over time.
//
// The journal is an observer: it receives every completed pass from the purge
// scheduler and manual purges. Write failures are logged and never interrupt
// eviction. Old rows are trimmed to the configured retention after each insert.
package purgelog

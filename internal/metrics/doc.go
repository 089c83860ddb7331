// Package metrics exposes cache activity as Prometheus collectors.
//
// A Collector implements both diskcache.EntryObserver and
// diskcache.PassObserver so the cache and the purge scheduler can report into
// it directly. Collectors register against their own registry; Handler serves
// that registry in the text exposition format.
package metrics

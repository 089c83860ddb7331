package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"slcache/internal/diskcache"
)

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func formatUsageDetail(usage diskcache.Usage) string {
	return fmt.Sprintf("%s of %s (%.1f%%)", formatBytes(usage.UsedBytes), formatBytes(usage.MaxBytes), usage.PercentUsed)
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"slcache/internal/diskcache"
	"slcache/internal/ipc"
	"slcache/internal/purgelog"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the cache directory",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheSeedCommand(ctx))
	cacheCmd.AddCommand(newCacheEntriesCommand(ctx))
	cacheCmd.AddCommand(newCacheHistoryCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage against the byte budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			var usage diskcache.Usage
			err := ctx.withDaemonOrLocal(cmd,
				func(client *ipc.Client) error {
					resp, err := client.Usage()
					if err != nil {
						return err
					}
					usage = resp.Usage
					return nil
				},
				func(cache *diskcache.Cache) error {
					usage = cache.Usage()
					return nil
				},
			)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, usage)
			}
			printUsage(cmd.OutOrStdout(), usage, ctx.configValue().Cache.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printUsage(out io.Writer, usage diskcache.Usage, dir string) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Cache", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Directory", statusInfo, dir, colorize))
	fmt.Fprintln(out, renderStatusLine("Usage", usageKind(usage.PercentUsed), formatUsageDetail(usage), colorize))
	fmt.Fprintln(out, renderStatusLine("Entries", statusInfo, formatCount(usage.Entries), colorize))
	fmt.Fprintln(out, renderStatusLine("Protected", statusInfo, formatCount(usage.Protected), colorize))
	if usage.TotalFSBytes > 0 {
		kind := statusOK
		if usage.FreeBytes < uint64(max(usage.MaxBytes-usage.UsedBytes, 0)) {
			kind = statusWarn
		}
		detail := fmt.Sprintf("%s free of %s", formatBytes(int64(usage.FreeBytes)), formatBytes(int64(usage.TotalFSBytes)))
		fmt.Fprintln(out, renderStatusLine("Filesystem", kind, detail, colorize))
	}
	if usage.ReadOnly {
		fmt.Fprintln(out, renderStatusLine("Mode", statusWarn, "read-only", colorize))
	}
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Run an eviction pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pass ipc.PassSummary
			err := ctx.withDaemonOrLocal(cmd,
				func(client *ipc.Client) error {
					resp, err := client.Purge()
					if err != nil {
						return err
					}
					pass = resp.Pass
					return nil
				},
				func(cache *diskcache.Cache) error {
					result, err := cache.Purge(cmd.Context())
					if err != nil {
						return err
					}
					ctx.journalLocalPass(cmd, result)
					pass = ipc.FromPassResult(result)
					return nil
				},
			)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, pass)
			}
			out := cmd.OutOrStdout()
			if pass.PassID == "" {
				fmt.Fprintln(out, "Cache is read-only; nothing purged")
				return nil
			}
			fmt.Fprintf(out, "Pass %s: scanned %s, deleted %s (%s), protected %s, failed %s\n",
				pass.PassID,
				formatCount(pass.Scanned),
				formatCount(pass.Deleted),
				formatBytes(pass.BytesDeleted),
				formatCount(pass.Protected),
				formatCount(pass.Failed),
			)
			fmt.Fprintf(out, "Usage %s -> %s (budget %s)\n", formatBytes(pass.BytesBefore), formatBytes(pass.BytesAfter), formatBytes(pass.Budget))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// journalLocalPass records a pass run without the daemon so history stays
// complete. Journal problems are reported but never fail the purge.
func (c *commandContext) journalLocalPass(cmd *cobra.Command, result diskcache.PassResult) {
	cfg := c.configValue()
	if cfg == nil || !cfg.Journal.Enabled || result.PassID == "" {
		return
	}
	journal, err := purgelog.Open(cfg.JournalPath(), cfg.Journal.KeepRuns, c.cliLogger())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: purge history unavailable: %v\n", err)
		return
	}
	defer journal.Close()
	journal.ObservePass(cmd.Context(), result)
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry and restore static assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.withDaemonOrLocal(cmd,
				func(client *ipc.Client) error {
					_, err := client.Clear()
					return err
				},
				func(cache *diskcache.Cache) error {
					return cache.Clear(cmd.Context())
				},
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
}

func newCacheSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Copy missing static assets into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ipc.SeedResponse
			err := ctx.withDaemonOrLocal(cmd,
				func(client *ipc.Client) error {
					resp, err := client.Seed()
					if err != nil {
						return err
					}
					result = *resp
					return nil
				},
				func(cache *diskcache.Cache) error {
					seeded, err := cache.Seed(cmd.Context())
					if err != nil {
						return err
					}
					result = ipc.SeedResponse{Copied: seeded.Copied, Existing: seeded.Existing, Skipped: seeded.Skipped, Failed: seeded.Failed}
					return nil
				},
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded: %d copied, %d already present, %d skipped, %d failed\n",
				result.Copied, result.Existing, result.Skipped, result.Failed)
			return nil
		},
	}
}

func newCacheEntriesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List entries newest first with their eviction outlook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			ctx.loadProtected(cache)
			entries, err := cache.Entries()
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Key.String(),
					formatBytes(entry.Size),
					formatAge(entry.ModTime),
					entryOutlook(entry),
				})
			}
			fmt.Fprint(out, renderTable([]string{"Key", "Size", "Last Access", "Next Pass"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// loadProtected copies the daemon's protected keys into a locally opened
// cache so listings reflect them. Without a daemon nothing is marked.
func (c *commandContext) loadProtected(cache *diskcache.Cache) {
	_ = c.withClient(func(client *ipc.Client) error {
		resp, err := client.Protected()
		if err != nil {
			return err
		}
		for _, raw := range resp.Keys {
			if key, err := parseKey(raw); err == nil {
				cache.SkipSet().Add(key)
			}
		}
		return nil
	})
}

func entryOutlook(entry diskcache.EntryInfo) string {
	switch {
	case entry.Protected:
		return "protected"
	case entry.WithinBudget:
		return "keep"
	default:
		return "evict"
	}
}

func newCacheHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent eviction passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := ctx.history(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No eviction passes recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Duration.String(),
					formatCount(run.Scanned),
					formatCount(run.Deleted),
					formatCount(run.Protected),
					formatBytes(run.BytesAfter),
					shortID(run.PassID),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Started", "Duration", "Scanned", "Deleted", "Protected", "After", "Pass"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of passes to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// history prefers the daemon and otherwise reads the journal file directly.
func (c *commandContext) history(ctx context.Context, limit int) ([]purgelog.Run, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		defer client.Close()
		resp, err := client.History(limit)
		if err != nil {
			return nil, err
		}
		return resp.Runs, nil
	}
	if !daemonOffline(err) {
		return nil, wrapDialError(err, socket)
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	if !cfg.Journal.Enabled {
		return nil, errors.New("purge journal disabled in configuration")
	}
	if _, statErr := os.Stat(cfg.JournalPath()); statErr != nil {
		return nil, nil
	}
	journal, openErr := purgelog.Open(cfg.JournalPath(), 0, c.cliLogger())
	if openErr != nil {
		return nil, openErr
	}
	defer journal.Close()
	return journal.Recent(ctx, limit)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

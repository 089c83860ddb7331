package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"slcache/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *ipc.StatusResponse
			socket := ctx.socketPath()
			client, err := ipc.Dial(socket)
			if err == nil {
				defer client.Close()
				status, err = client.Status()
				if err != nil {
					return err
				}
			} else if !daemonOffline(err) {
				return wrapDialError(err, socket)
			}

			if jsonOutput {
				if status == nil {
					status = &ipc.StatusResponse{}
				}
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			if status == nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running ("+socket+")", colorize))
				fmt.Fprintln(out)
				cache, err := ctx.openCache()
				if err != nil {
					return err
				}
				printUsage(out, cache.Usage(), cache.Root())
				return nil
			}
			printDaemonStatus(out, status, colorize)
			fmt.Fprintln(out)
			printUsage(out, status.Usage, status.CacheDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printDaemonStatus(out io.Writer, status *ipc.StatusResponse, colorize bool) {
	running := fmt.Sprintf("pid %d, up since %s", status.PID, formatAge(status.StartedAt))
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, running, colorize))

	scheduler := "stopped"
	kind := statusWarn
	if status.SchedulerRunning {
		scheduler = "every " + (time.Duration(status.PurgeIntervalSec) * time.Second).String()
		kind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Scheduler", kind, scheduler, colorize))

	if status.LastPass != nil {
		last := fmt.Sprintf("%s, deleted %s, protected %s",
			formatAge(status.LastPass.StartedAt),
			formatCount(status.LastPass.Deleted),
			formatCount(status.LastPass.Protected))
		lastKind := statusOK
		if status.LastPass.Failed > 0 {
			lastKind = statusWarn
			last += fmt.Sprintf(", %d failed", status.LastPass.Failed)
		}
		fmt.Fprintln(out, renderStatusLine("Last pass", lastKind, last, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Last pass", statusInfo, "none yet", colorize))
	}
	if status.JournalPath != "" {
		fmt.Fprintln(out, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
	}
	if status.MetricsBind != "" {
		fmt.Fprintln(out, renderStatusLine("Metrics", statusInfo, "http://"+status.MetricsBind+"/metrics", colorize))
	}
}

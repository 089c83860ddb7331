package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slcache/internal/daemonrun"
	"slcache/internal/preflight"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or inspect the cache daemon",
	}

	var logLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    strings.TrimSpace(logLevel),
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	runCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")

	var jsonOutput bool
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks against the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if jsonOutput {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	daemonCmd.AddCommand(runCmd, checkCmd)
	return daemonCmd
}

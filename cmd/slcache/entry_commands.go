package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slcache/internal/assetkey"
	"slcache/internal/diskcache"
)

func newEntryCommand(ctx *commandContext) *cobra.Command {
	entryCmd := &cobra.Command{
		Use:   "entry",
		Short: "Read and write individual cache entries",
	}
	entryCmd.AddCommand(newEntryGetCommand(ctx))
	entryCmd.AddCommand(newEntryPutCommand(ctx))
	entryCmd.AddCommand(newEntryRemoveCommand(ctx))
	entryCmd.AddCommand(newEntryMoveCommand(ctx))
	entryCmd.AddCommand(newEntryExistsCommand(ctx))
	return entryCmd
}

func parseKey(raw string) (assetkey.Key, error) {
	key, err := assetkey.Parse(raw)
	if err != nil {
		return assetkey.Key{}, err
	}
	if key.IsNil() {
		return assetkey.Key{}, fmt.Errorf("%w: nil id", assetkey.ErrInvalidKey)
	}
	return key, nil
}

func newEntryGetCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var offset int64
	var length int
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write an entry's bytes to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}

			var data []byte
			if offset > 0 || length > 0 {
				if length <= 0 {
					length = int(max(cache.Size(key)-offset, 0))
				}
				buf := make([]byte, length)
				n := cache.Read(key, offset, buf)
				if n == 0 && !cache.Exists(key) {
					return fmt.Errorf("entry %s: %w", key, diskcache.ErrNotFound)
				}
				data = buf[:n]
			} else {
				data, err = cache.ReadAll(key)
				if err != nil {
					return err
				}
			}

			if strings.TrimSpace(outPath) == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s to %s\n", formatBytes(int64(len(data))), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination file (default stdout)")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start reading at")
	cmd.Flags().IntVar(&length, "length", 0, "Number of bytes to read (default to end)")
	return cmd
}

func newEntryPutCommand(ctx *commandContext) *cobra.Command {
	var appendMode bool
	var typeName string
	cmd := &cobra.Command{
		Use:   "put <id> [file|-]",
		Short: "Store bytes from a file or stdin as an entry",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			key = key.WithType(assetkey.ParseType(typeName))

			var src io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				file, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open source: %w", err)
				}
				defer file.Close()
				src = file
			}
			data, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}

			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			mode := diskcache.ModeOverwrite
			if appendMode {
				mode = diskcache.ModeAppend
			}
			if !cache.Write(key, data, mode) {
				if cache.ReadOnly() {
					return fmt.Errorf("write %s: %w", key, diskcache.ErrReadOnly)
				}
				return fmt.Errorf("write %s failed; see log output", key.Describe())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s)\n", key.Describe(), formatBytes(int64(len(data))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "Append instead of replacing existing content")
	cmd.Flags().StringVarP(&typeName, "type", "t", "unknown", "Asset type tag (texture, sound, mesh, ...)")
	return cmd
}

func newEntryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			if !cache.Remove(key) {
				if cache.ReadOnly() {
					return fmt.Errorf("remove %s: %w", key, diskcache.ErrReadOnly)
				}
				return fmt.Errorf("remove %s failed; see log output", key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
			return nil
		},
	}
}

func newEntryMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "mv <src-id> <dst-id>",
		Aliases: []string{"rename"},
		Short:   "Move an entry to a new key, replacing any existing destination",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parseKey(args[0])
			if err != nil {
				return err
			}
			dst, err := parseKey(args[1])
			if err != nil {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			if err := cache.RenameStrict(src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s -> %s\n", src, dst)
			return nil
		},
	}
}

// errEntryMissing makes `entry exists` exit non-zero for scripting.
var errEntryMissing = errors.New("entry not present")

func newEntryExistsCommand(ctx *commandContext) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "exists <id>",
		Short: "Report whether a non-empty entry is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			exists := cache.Exists(key)
			if !quiet {
				detail := yesNo(exists)
				if exists {
					detail += " (" + formatBytes(cache.Size(key)) + ")"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, detail)
			}
			if !exists {
				return errEntryMissing
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only set the exit status")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"slcache/internal/config"
	"slcache/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		fmt.Fprintf(os.Stderr, "slcached: %v\n", err)
		os.Exit(1)
	}
}

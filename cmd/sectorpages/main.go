// cmd/sectorpages/main.go
//
// Entry point for the sectorpages CLI. Every command works on the project
// in the current directory (or --project): .sectorpages/ holds config, logs
// and state, and the taxonomy CSV plus content tree sit next to it.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

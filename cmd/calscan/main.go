package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// Embedded zone data so timezone settings work on minimal images.
	_ "time/tzdata"

	appLog "calscan/internal/log"
)

const version = "0.1.0-dev"

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		appLog.Error("calscan failed", err)
		os.Exit(1)
	}
}

package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on the first SIGINT or SIGTERM.
// Cancelling it is what tells in-flight fan-outs to stop queuing attempts;
// a second signal exits immediately without waiting for running calls.
func SetupSignalHandler(logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal, cancelling pending work", "signal", sig.String())
		cancel()

		sig = <-sigCh
		logger.Warn("received second shutdown signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}

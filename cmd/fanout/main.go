package main

import (
	"log/slog"
	"os"

	"github.com/aryankumar/fanout/internal/cli"
	"github.com/aryankumar/fanout/internal/util"
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx := util.SetupSignalHandler(nil)

	// Execute the CLI
	if err := cli.Execute(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"log/slog"

	"conduit/internal/cli"
	"conduit/internal/logger"
	"conduit/internal/server"
)

func main() {
	// Business API routes register here by service name.
	mounts := server.Mounts{}

	if err := cli.NewRootCommand(mounts).Execute(); err != nil {
		logger.Fatal("Command failed", slog.String("error", err.Error()))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/illarion/keevault/cmd"
	"github.com/illarion/keevault/internal/config"
	"github.com/illarion/keevault/internal/infra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; existing variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so command output stays clean on stdout
	logger := infra.SetupLogger(&cfg, os.Stderr)

	if err := cmd.Execute(ctx, cfg, logger); err != nil {
		stop()
		cmd.HandleError(err)
	}
}

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
)

// Run loads configuration, assembles the App, and serves until SIGINT or
// SIGTERM. Errors bubble up so the agorad binary decides the exit code and
// deferred cleanup still runs.
func Run() error {
	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	a, err := New(cfg, log)
	if err != nil {
		return fmt.Errorf("agora startup: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

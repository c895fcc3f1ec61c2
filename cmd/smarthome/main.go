package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		slog.Error("Server stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

// Load config, build app and serve until context is cancelled
// Config sources in order of priority: flags, environment, '.env' file, yaml file from CONFIG_FILE
func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	c := NewConfig()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := c.LoadFile(path); err != nil {
			return err
		}
	}
	if err := c.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("error while loading .env file: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return err
	}
	if err := c.ParseFlags(args); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	app, err := NewServerApp(ctx, c)
	if err != nil {
		return err
	}

	return app.Run(ctx)
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackhub/auth-service/internal/app"
	"github.com/trackhub/auth-service/internal/infrastructure/config"
	"github.com/trackhub/auth-service/pkg/logger"
)

// NewRootCmd creates the root command for the auth service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authsvc",
		Short: "Trackhub authentication service",
		Long: `authsvc issues and verifies session tokens for the time tracker.
Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}

// bootstrap loads configuration, initialises the logger and wires the app.
func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "authsvc",
	})

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return a, nil
}

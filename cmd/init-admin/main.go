package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"relaygate/internal/auth"
	"relaygate/internal/config"
	"relaygate/internal/domain"
	"relaygate/internal/storage"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "init-admin",
		Short: "Set or reset the relaygate operator password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "relaygate.toml", "path to the TOML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	password := os.Getenv("RELAYGATE_ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("RELAYGATE_ADMIN_PASSWORD must be set")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.NewDB(storage.DBConfig{DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	settingsRepo := db.NewSettingsRepository()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settings, err := settingsRepo.Get(ctx)
	if err != nil {
		if !storage.IsNotFound(err) {
			return fmt.Errorf("load settings: %w", err)
		}
		settings = &domain.Settings{EnableRequestLogs: true}
	}
	settings.PasswordHash = hash

	if err := settingsRepo.Upsert(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	fmt.Println("Operator password set successfully.")
	return nil
}

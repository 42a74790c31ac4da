package main

import (
	"fmt"
	"os"
	"time"

	"creatorhub/database"
	"creatorhub/internal/app"
	"creatorhub/internal/auth"
	"creatorhub/internal/config"
	"creatorhub/internal/logger"

	"github.com/spf13/cobra"
)

const appName = "creatorhub"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Realtime chat rooms, presence and direct messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, false)
		},
	}

	cmd.PersistentFlags().String("config", "", "path to config file (default $CONFIG_PATH or config/config.yaml)")

	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServe(cmd, migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "apply schema migrations before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return migrate(cfg)
		},
	}
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user (development)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetUint("user-id")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if userID == 0 {
				return fmt.Errorf("--user-id is required")
			}

			token, err := auth.NewTokenManager(cfg.JWT.Secret, appName).GenerateToken(userID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Uint("user-id", 0, "user id to embed in the token")
	cmd.Flags().String("name", "", "display name claim")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func runServe(cmd *cobra.Command, withMigrate bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if withMigrate {
		if err := migrate(cfg); err != nil {
			return err
		}
	}

	if code := app.Run(cfg); code != 0 {
		os.Exit(code)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env, "version", Version)
	return cfg, nil
}

func migrate(cfg *config.Config) error {
	db, err := database.Open(cfg.Database, cfg.Server.Env)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("Database schema is up to date")
	return nil
}

package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/building-ledger/internal/config"
	"github.com/josh-kwaku/building-ledger/internal/logging"
	"github.com/josh-kwaku/building-ledger/internal/repository"
)

const serviceName = "building-ledger"

var version = "dev"

// rootOptions is shared by every subcommand.
type rootOptions struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "ledger",
		Short:        "Building management ledger",
		Long:         "Accounts, transactions, expenses and rent payments for a building, backed by PostgreSQL.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file merged into the environment when present")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newReconcileCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := repository.NewPostgresDB(ctx, o.cfg.DatabaseURL, o.cfg.Pool())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

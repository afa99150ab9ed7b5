package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/seed"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load accounts, expense categories and rent obligations from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			defer f.Close()

			data, err := seed.Parse(f)
			if err != nil {
				return err
			}

			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			loader := seed.NewLoader(
				service.NewAccountService(repository.NewAccountRepository(db)),
				repository.NewCategoryRepository(db),
				repository.NewRentRepository(db),
			)
			res, err := loader.Apply(cmd.Context(), data)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "accounts: %d created, %d skipped; categories: %d; rents: %d\n",
				res.AccountsCreated, res.AccountsSkipped, res.Categories, res.Rents)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "seed file")
	return cmd
}

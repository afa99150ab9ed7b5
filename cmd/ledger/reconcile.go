package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/building-ledger/internal/domain"
	"github.com/josh-kwaku/building-ledger/internal/repository"
	"github.com/josh-kwaku/building-ledger/internal/service"
)

var errDrift = errors.New("balance drift detected")

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	driftStyle  = cellStyle.Foreground(lipgloss.Color("196"))
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored balances with the transaction log; exits non-zero on drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			accounts := service.NewAccountService(repository.NewAccountRepository(db))
			report, err := accounts.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			return renderReconciliation(cmd.OutOrStdout(), report)
		},
	}
}

// renderReconciliation writes the report as a table and returns errDrift
// when any account is out of balance.
func renderReconciliation(w io.Writer, report []domain.Reconciliation) error {
	drifted := make(map[int]bool)
	rows := make([][]string, len(report))
	for i, r := range report {
		status := "ok"
		if !r.Balanced() {
			status = "DRIFT"
			drifted[i] = true
		}
		rows[i] = []string{
			r.Name,
			r.AccountID.String(),
			domain.FormatMoney(r.Stored),
			domain.FormatMoney(r.Expected),
			domain.FormatMoney(r.Drift()),
			status,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ACCOUNT", "ID", "STORED", "EXPECTED", "DRIFT", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case drifted[row]:
				return driftStyle
			default:
				return cellStyle
			}
		})

	fmt.Fprintln(w, t.Render())

	if len(drifted) > 0 {
		fmt.Fprintf(w, "%d of %d accounts out of balance\n", len(drifted), len(report))
		return errDrift
	}
	fmt.Fprintf(w, "all %d accounts balanced\n", len(report))
	return nil
}

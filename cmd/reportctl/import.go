package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finassist/internal/storage/memory"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import incomes, expenses, bills and invoices from a JSON file",
		Long: `Import reads a JSON document of the form
{"incomes": [...], "expenses": [...], "bills": [...], "invoices": [...]}
and inserts every record in one transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := memory.LoadRecords(args[0])
			if err != nil {
				return err
			}
			res, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			if err := res.Importer.ImportRecords(cmd.Context(), rec); err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(a.out, "imported %d incomes, %d expenses, %d bills, %d invoices\n",
				len(rec.Incomes), len(rec.Expenses), len(rec.Bills), len(rec.Invoices))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"finassist/internal/backend"
	"finassist/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, dsn, err := a.migrationTarget()
			if err != nil {
				return err
			}
			if err := storage.RollbackMigrations(dialect, dsn, steps); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "rolled back %s schema\n", dialect)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to revert, 0 for all")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dialect, dsn, err := a.migrationTarget()
				if err != nil {
					return err
				}
				if err := storage.RunMigrations(dialect, dsn); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s schema is up to date\n", dialect)
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dialect, dsn, err := a.migrationTarget()
				if err != nil {
					return err
				}
				version, dirty, err := storage.MigrationVersion(dialect, dsn)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "version=%d dirty=%t\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) migrationTarget() (storage.Dialect, string, error) {
	switch backend.BackendType(a.cfg.DataBackend) {
	case backend.SQLiteBackend:
		return storage.DialectSQLite, storage.SQLiteDSN(a.cfg.SQLiteDBPath), nil
	case backend.PostgresBackend:
		return storage.DialectPostgres, a.cfg.PostgresDSN, nil
	default:
		return "", "", fmt.Errorf("migrations apply only to sql backends, DATA_BACKEND is %q", a.cfg.DataBackend)
	}
}

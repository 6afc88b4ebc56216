package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imf-gadgets/gadget-core/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back or inspect the embedded SQL migrations.
The serve command applies pending migrations on start; use these
subcommands to run them by hand.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE:  runMigrateStatus,
	})

	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI path

	if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI path

	m, err := db.MigrateDown(cmd.Context(), migrations.FS)
	if err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	if m == nil {
		cmd.Println("Nothing to roll back")
		return nil
	}
	cmd.Printf("Rolled back %s %s\n", m.Version, m.Name)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI path

	applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	for _, r := range applied {
		cmd.Printf("applied  %s  (%s)\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		cmd.Printf("pending  %s  %s\n", m.Version, m.Name)
	}
	cmd.Printf("%d applied, %d pending\n", len(applied), len(pending))
	return nil
}

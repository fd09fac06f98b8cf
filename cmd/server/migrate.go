package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"secretvault/internal/config"
	"secretvault/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
	Long: `Manage the embedded database schema.

Examples:
  # Apply all pending migrations
  secretvault migrate up

  # Roll back the most recent migration
  secretvault migrate down

  # Show the current schema version
  secretvault migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB, _ []string) error {
		if err := db.MigrateUp(); err != nil {
			return err
		}
		return printVersion(cmd, db)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB, _ []string) error {
		if err := db.MigrateDown(); err != nil {
			return err
		}
		return printVersion(cmd, db)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB, _ []string) error {
		return printVersion(cmd, db)
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

// withDatabase opens the database from the environment for operator commands.
// Only DATABASE_URL and the pool settings are required.
func withDatabase(fn func(cmd *cobra.Command, db *database.DB, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDatabase()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		return fn(cmd, db, args)
	}
}

func printVersion(cmd *cobra.Command, db *database.DB) error {
	version, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "secretvault",
	Short: "secretvault - per-user encrypted secret storage behind an identity provider.",
	Long: `secretvault stores one encrypted secret per signed-in user and lets
administrators list and delete accounts.

Usage:
  secretvault [command]

Available Commands:
  serve      Run the HTTP server (default)
  migrate    Apply or roll back database migrations
  users      Operator-only user management

Configuration is read from the environment and an optional .env file.
`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

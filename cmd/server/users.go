package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secretvault/internal/database"
	"secretvault/internal/user"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Operator-only user management",
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user-id> <member|admin>",
	Short: "Change a user's role",
	Long: `Change the role of an already provisioned user. Users are provisioned
the first time they sign in, so promote an administrator after their first visit.

Examples:
  secretvault users set-role user_2abcDEF admin`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return err
		}
		_, err := user.ParseRole(args[1])
		return err
	},
	RunE: withDatabase(func(cmd *cobra.Command, db *database.DB, args []string) error {
		role, err := user.ParseRole(args[1])
		if err != nil {
			return err
		}

		mgr := user.NewManager(user.NewDatastore(db))
		if err := mgr.SetRole(cmd.Context(), args[0], role); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return fmt.Errorf("user %s not found; they must sign in once before their role can be changed", args[0])
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "user %s is now %s\n", args[0], role)
		return nil
	}),
}

func init() {
	usersCmd.AddCommand(setRoleCmd)
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/erazemk/menjava/internal/auth"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var password string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account, generating a password unless one is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if err := model.ValidateUsername(username); err != nil {
				return err
			}

			generated := password == ""
			if generated {
				var err error
				if password, err = generatePassword(16); err != nil {
					return fmt.Errorf("generating password: %w", err)
				}
			} else if err := model.ValidatePassword(password); err != nil {
				return err
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			database, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			user, err := store.CreateUser(cmd.Context(), database, username, hash)
			if err != nil {
				return err
			}
			slog.Info("user created", "user", user.Username, "id", user.ID)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Account created:\n  ID:       %s\n  Username: %s\n", user.ID, user.Username)
			if generated {
				fmt.Fprintf(out, "  Password: %s\n\nSave this password, it cannot be recovered.\n", password)
			}
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "password (default: generated)")

	cmd.AddCommand(add)
	return cmd
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samirrijal/civicconnect/internal/adapters/postgres"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
	"github.com/samirrijal/civicconnect/internal/pkg/config"
)

func newCreateAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load("civicctl")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := postgres.New(ctx, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer db.Close()

			u, err := usecases.NewUserService(postgres.NewUserRepo(db)).CreateAdmin(ctx, name, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %d <%s>\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password (at least 6 characters)")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

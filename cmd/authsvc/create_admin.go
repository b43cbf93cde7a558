package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/trackhub/auth-service/internal/app"
	"github.com/trackhub/auth-service/pkg/logger"
)

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	var in app.AdminInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account with the admin role",
		Long:  `Register an admin account directly against the configured store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Email == "" || in.Password == "" {
				return errors.New("--email and --password are required")
			}
			return runCreateAdmin(cmd, in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&in.Company, "company", "Trackhub", "company name")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, in app.AdminInput) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("close backends")
		}
	}()

	account, err := a.CreateAdmin(ctx, in)
	if err != nil {
		return err
	}
	log.Info().Str("account_id", account.ID).Msg("admin account created")
	cmd.Printf("created admin %s (%s)\n", account.Email, account.ID)
	return nil
}

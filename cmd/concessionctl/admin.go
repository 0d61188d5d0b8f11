package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/YashBawari18/Online-TicketConsession/internal/repository"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
)

func newAdminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var username, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.open(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			auth := service.NewAuthService(repository.NewAccountRepository(store.Gateway), validator.New(), c.logger, service.AuthConfig{
				AccessTokenSecret: c.cfg.JWT.Secret,
				AccessTokenExpiry: c.cfg.JWT.Expiration,
				Issuer:            c.cfg.JWT.Issuer,
			}, nil)
			admin, err := auth.CreateAdmin(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Username, admin.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&password, "password", "", "initial password, at least 8 characters")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

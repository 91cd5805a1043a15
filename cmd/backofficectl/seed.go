package main

import (
	"backoffice/config"
	"backoffice/internal/usecase"

	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	var (
		adminEmail     string
		adminFirstName string
		adminLastName  string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install system permissions and roles, and the bootstrap super admin",
		Long: "Installs the permission catalogue and the system roles. The bootstrap super admin is " +
			"taken from the seed section of the config; its password is only read from config or " +
			"SEED_ADMINPASSWORD. Running seed again is safe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				cfg    *config.Config
				seeder usecase.SeedUsecase
			)

			return withApp(ctx, func() error {
				input := seedInput(cfg)
				if cmd.Flags().Changed("admin-email") {
					input.AdminEmail = adminEmail
				}
				if cmd.Flags().Changed("admin-first-name") {
					input.AdminFirstName = adminFirstName
				}
				if cmd.Flags().Changed("admin-last-name") {
					input.AdminLastName = adminLastName
				}

				out, err := seeder.Seed(ctx, input)
				if err != nil {
					return err
				}

				cmd.Printf("permissions: %d, roles: %d, admin created: %t\n", out.Permissions, out.Roles, out.AdminCreated)

				return nil
			}, &cfg, &seeder)
		},
	}

	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "Bootstrap super admin email (overrides config)")
	cmd.Flags().StringVar(&adminFirstName, "admin-first-name", "", "Bootstrap super admin first name")
	cmd.Flags().StringVar(&adminLastName, "admin-last-name", "", "Bootstrap super admin last name")

	return cmd
}

func seedInput(cfg *config.Config) usecase.SeedInput {
	if cfg.Seed == nil {
		return usecase.SeedInput{}
	}

	return usecase.SeedInput{
		AdminEmail:     cfg.Seed.AdminEmail,
		AdminPassword:  cfg.Seed.AdminPassword,
		AdminFirstName: cfg.Seed.AdminFirstName,
		AdminLastName:  cfg.Seed.AdminLastName,
	}
}

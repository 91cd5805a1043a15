package main

import (
	"context"

	"backoffice/internal/infra/persistence/migrations"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		migrateStep("up", "Apply every pending migration", migrations.Up),
		migrateStep("down", "Roll back the most recent migration", migrations.Down),
		migrateStep("status", "Print the state of every migration", migrations.Status),
	)

	return cmd
}

func migrateStep(use, short string, step func(ctx context.Context, db *gorm.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var db *gorm.DB

			return withApp(ctx, func() error {
				if err := step(ctx, db); err != nil {
					return err
				}

				version, err := migrations.Version(ctx, db)
				if err != nil {
					return err
				}
				cmd.Printf("schema version: %d\n", version)

				return nil
			}, &db)
		},
	}
}

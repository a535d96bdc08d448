package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cfdi-engine/internal/infrastructure/postgres"
)

func newMigrateCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas a la base de datos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := postgres.Migrate(app.cfg.DB.ConnectionString())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "esquema en la versión %d\n", version)
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones pendientes",
	Long: `Aplica en orden las migraciones embebidas que aún no figuran en schema_migrations.
Cada migración corre en su propia transacción; ejecutarlo dos veces no tiene efecto.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		applied, err := postgres.Migrate(cmd.Context(), e.pool)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "sin migraciones pendientes")
			return nil
		}
		for _, v := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "aplicada", v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

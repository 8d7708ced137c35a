package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/gestion-pyme/internal/domain/alert"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
)

var (
	alertsCompany string
	alertsJSON    bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Consultas sobre alertas de stock",
}

var alertsRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Calcula las alertas de stock desde los productos",
	Long: `Aplica los umbrales (crítico: stock <= mínimo/2, bajo: stock <= mínimo) a todos
los productos de la empresa y muestra el resultado sin escribir en la base.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		products, err := postgres.NewProductRepository(e.pool).ListAllByCompany(cmd.Context(), alertsCompany)
		if err != nil {
			return err
		}
		items := alert.Synthesize(products, time.Now())
		out := cmd.OutOrStdout()
		if alertsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "sin alertas de stock")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIPO\tMENSAJE")
		for _, n := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.Type, n.Message)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsRecomputeCmd)
	alertsRecomputeCmd.Flags().StringVar(&alertsCompany, "company", "", "ID de la empresa (requerido)")
	alertsRecomputeCmd.Flags().BoolVar(&alertsJSON, "json", false, "Salida en JSON")
	_ = alertsRecomputeCmd.MarkFlagRequired("company")
}

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/application/usecase"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
)

var (
	importCompany string
	importLatin1  bool
)

var importCmd = &cobra.Command{
	Use:   "import-products FILE",
	Short: "Crea o actualiza productos desde un CSV",
	Long: `Importa el catálogo de una empresa. Formato (separado por ';'):

  codigo;nombre;precio;stock;stock_minimo

Los productos existentes (mismo código) se actualizan; el stock se ajusta con la
misma guarda optimista que el API. Las filas inválidas se listan al final.

Ejemplos:
  erpctl import-products catalogo.csv --company 3f0c...
  erpctl import-products export-excel.csv --company 3f0c... --latin1`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importCompany, "company", "", "ID de la empresa (requerido)")
	importCmd.Flags().BoolVar(&importLatin1, "latin1", false, "El archivo está en Windows-1252")
	_ = importCmd.MarkFlagRequired("company")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	parsed, err := parseCatalog(f, importLatin1)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	uc := usecase.NewProductUseCase(postgres.NewProductRepository(e.pool), e.log.Component("import"))
	res, err := uc.Import(cmd.Context(), cliSession(importCompany), parsed.Rows)
	if err != nil {
		return err
	}
	// Import numera por posición; se traduce a la línea del archivo.
	for i := range res.Errors {
		if n := res.Errors[i].Line - 1; n >= 0 && n < len(parsed.Lines) {
			res.Errors[i].Line = parsed.Lines[n]
		}
	}
	res.Errors = append(parsed.Errors, res.Errors...)
	printImport(cmd, res)
	return nil
}

// cliSession sesión de administrador para la empresa indicada.
func cliSession(companyID string) domain.Session {
	return domain.Session{CompanyID: companyID, UserID: "erpctl", Roles: []string{entity.RoleAdmin}}
}

func printImport(cmd *cobra.Command, res *dto.ImportResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "creados: %d  actualizados: %d  con error: %d\n", res.Created, res.Updated, len(res.Errors))
	if len(res.Errors) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LÍNEA\tCÓDIGO\tERROR")
	for _, e := range res.Errors {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.Line, e.Code, e.Message)
	}
	_ = w.Flush()
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
	"github.com/jhoicas/gestion-pyme/pkg/config"
	"github.com/jhoicas/gestion-pyme/pkg/logger"
)

var (
	// Flags globales
	dbURL   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "erpctl",
	Short: "Herramientas de operación de Gestión PyME",
	Long: `erpctl ejecuta tareas de mantenimiento contra la base de datos:

  migrate          - Aplica las migraciones pendientes
  import-products  - Crea o actualiza productos desde un CSV
  alerts recompute - Muestra las alertas de stock calculadas para una empresa`,
	SilenceUsage: true,
}

// Execute ejecuta el comando raíz.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "URL de PostgreSQL (por defecto la de la configuración)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log en nivel debug")
}

// env configuración, logger y pool compartidos por los subcomandos.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbURL != "" {
		cfg.DB.DatabaseURL = dbURL
	}
	level := cfg.App.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Env: "development", Level: level, Output: os.Stderr})
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
}

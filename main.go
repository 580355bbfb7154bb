// Command cupones calcula flujos y TIR de bonos y sirve los datos de
// referencia (feriados, CER, BADLAR, TAMAR) que la calculadora necesita.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/config"
	"github.com/jmtruffa/cupones/internal/logging"
	"github.com/jmtruffa/cupones/internal/store"
)

var errDBNotConfigured = errors.New("base de datos no configurada (POSTGRES_* o db.driver=sqlite3 con db.path)")

// app es el estado compartido por los subcomandos.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var cfgFile, level string

	root := &cobra.Command{
		Use:   "cupones",
		Short: "Calculadora de cupones de bonos y servicio de datos de referencia",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfgFile != "" {
				a.cfg, err = config.LoadFromFile(cfgFile)
			} else {
				a.cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			if level != "" {
				a.cfg.Log.Level = level
			}
			a.log, err = logging.New(a.cfg.Log.Level, a.cfg.Log.Format)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "archivo de configuración (por defecto busca cupones.yaml)")
	root.PersistentFlags().StringVar(&level, "log-level", "", "nivel de log: debug, info, warn o error")

	root.AddCommand(
		newServeCommand(a),
		newCalcCommand(a),
		newFeriadosCommand(a),
		newSeriesCommand(a),
	)
	return root
}

// openStore abre la base configurada y crea las tablas que falten.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if !a.cfg.DBConfigured() {
		return nil, errDBNotConfigured
	}
	var (
		st  *store.Store
		err error
	)
	if a.cfg.DB.Driver == store.DriverSQLite {
		st, err = store.Open(ctx, store.DriverSQLite, a.cfg.DB.Path)
	} else {
		st, err = store.OpenPostgres(ctx, a.cfg.Postgres.Store())
	}
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

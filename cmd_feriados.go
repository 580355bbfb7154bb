package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/holidaysync"
)

func newFeriadosCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feriados",
		Short: "Administración de feriados",
	}

	var desde, hasta string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Trae los feriados de la API pública y los guarda en la base",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			from, to := holidaysync.DefaultWindow(time.Now())
			if desde != "" {
				t, ok := fecha.Parse(desde)
				if !ok {
					return fmt.Errorf("--desde inválido: %q", desde)
				}
				from = t
			}
			if hasta != "" {
				t, ok := fecha.Parse(hasta)
				if !ok {
					return fmt.Errorf("--hasta inválido: %q", hasta)
				}
				to = t
			}
			if from.After(to) {
				return fmt.Errorf("--desde (%s) posterior a --hasta (%s)", fecha.Format(from), fecha.Format(to))
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			fetch := holidaysync.NewFetcher(a.cfg.Feriados.APIURL, holidaysync.DefaultTimeout, a.log)
			n, err := holidaysync.NewSyncer(fetch, st, a.log).Sync(ctx, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d feriados sincronizados (%s a %s)\n", n, fecha.Format(from), fecha.Format(to))
			return nil
		},
	}
	syncCmd.Flags().StringVar(&desde, "desde", "", "fecha inicial (YYYY-MM-DD o DD/MM/YYYY)")
	syncCmd.Flags().StringVar(&hasta, "hasta", "", "fecha final (YYYY-MM-DD o DD/MM/YYYY)")

	cmd.AddCommand(syncCmd)
	return cmd
}

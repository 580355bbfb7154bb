package main

import (
	"github.com/spf13/cobra"

	"github.com/jmtruffa/cupones/internal/api"
	"github.com/jmtruffa/cupones/internal/holidaysync"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr   string
		noSync bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP de datos de referencia",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			var (
				repo   api.Repository
				syncer api.Syncer
			)
			if a.cfg.DBConfigured() {
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				repo = st

				fetch := holidaysync.NewFetcher(a.cfg.Feriados.APIURL, holidaysync.DefaultTimeout, a.log)
				s := holidaysync.NewSyncer(fetch, st, a.log)
				syncer = s
				if !noSync {
					stopJob, err := s.Schedule(ctx, a.cfg.Feriados.SyncAt)
					if err != nil {
						return err
					}
					defer stopJob()
				}
			} else {
				a.log.Warn("base de datos no configurada: las rutas de datos responden 503")
			}

			srv := api.New(repo, syncer, a.log, api.Options{CORSOrigins: a.cfg.Server.CORSOrigins})
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "dirección de escucha (por defecto server.addr)")
	cmd.Flags().BoolVar(&noSync, "sin-sincronizacion", false, "no programar la sincronización diaria de feriados")
	return cmd
}

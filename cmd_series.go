package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/seriesimport"
)

func newSeriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Administración de series CER, BADLAR y TAMAR",
	}

	var serie, archivo string
	cols := seriesimport.DefaultColumns
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Importa una serie desde un CSV o una planilla XLS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := seriesimport.Import(ctx, st, model.Series(serie), archivo, cols, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d valores de %s importados desde %s\n", n, serie, archivo)
			return nil
		},
	}
	importCmd.Flags().StringVar(&serie, "serie", "", "serie destino: cer, badlar o tamar")
	importCmd.Flags().StringVar(&archivo, "archivo", "", "archivo .csv o .xls")
	importCmd.Flags().IntVar(&cols.Date, "col-fecha", cols.Date, "columna de la fecha (base 0)")
	importCmd.Flags().IntVar(&cols.Value, "col-valor", cols.Value, "columna del valor (base 0)")
	_ = importCmd.MarkFlagRequired("serie")
	_ = importCmd.MarkFlagRequired("archivo")

	cmd.AddCommand(importCmd)
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmtruffa/cupones/internal/client"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/numfmt"
	"github.com/jmtruffa/cupones/internal/schedule"
	"github.com/jmtruffa/cupones/internal/session"
	"github.com/jmtruffa/cupones/internal/store"
)

// presetFlag liga un flag de texto con un campo del formulario.
type presetFlag struct {
	name  string
	usage string
	field func(*model.Preset) *string
}

var presetFlags = []presetFlag{
	{"nombre", "nombre de la calculadora", func(p *model.Preset) *string { return &p.Nombre }},
	{"ticker", "ticker del bono", func(p *model.Preset) *string { return &p.Ticker }},
	{"fecha-compra", "fecha de compra (DD/MM/YYYY)", func(p *model.Preset) *string { return &p.FechaCompra }},
	{"precio", "precio de compra por unidad de valor nominal", func(p *model.Preset) *string { return &p.PrecioCompra }},
	{"cantidad", "valor nominal comprado", func(p *model.Preset) *string { return &p.CantidadPartida }},
	{"tasa", "tipo de tasa: fija, badlar o tamar", func(p *model.Preset) *string { return &p.Tasa }},
	{"formula", "promedio, promedio-N o ultimas-N", func(p *model.Preset) *string { return &p.Formula }},
	{"tna", "TNA fija en %", func(p *model.Preset) *string { return &p.RentaTNA }},
	{"spread", "spread sobre la tasa variable en %", func(p *model.Preset) *string { return &p.Spread }},
	{"tipo-interes-dias", "base de días: 0=30/360 1=Act/Act 2=Act/360 3=Act/365", func(p *model.Preset) *string { return &p.TipoInteresDias }},
	{"fecha-emision", "fecha de emisión (DD/MM/YYYY)", func(p *model.Preset) *string { return &p.FechaEmision }},
	{"primera-renta", "día y mes de la primera renta (DD/MM)", func(p *model.Preset) *string { return &p.FechaPrimeraRenta }},
	{"dias-restar", "días a sumar al fin de devengamiento (por defecto -1)", func(p *model.Preset) *string { return &p.DiasRestarFechaFinDev }},
	{"fecha-amortizacion", "fecha de la primera amortización (DD/MM/YYYY)", func(p *model.Preset) *string { return &p.FechaAmortizacion }},
	{"porcentaje-amortizacion", "porcentaje amortizado en cada cuota", func(p *model.Preset) *string { return &p.PorcentajeAmortizacion }},
	{"periodicidad", "mensual, bimestral, trimestral, semestral o anual", func(p *model.Preset) *string { return &p.Periodicidad }},
	{"intervalo-inicio", "días hábiles al inicio del intervalo", func(p *model.Preset) *string { return &p.IntervaloInicio }},
	{"intervalo-fin", "días hábiles al fin del intervalo", func(p *model.Preset) *string { return &p.IntervaloFin }},
}

// calcBackend es de dónde salen los datos de referencia y las calculadoras
// guardadas: la API o la base directamente.
type calcBackend interface {
	session.DataSource
	loadPreset(ctx context.Context, id int64) (model.Preset, error)
	savePreset(ctx context.Context, p model.Preset) (model.PresetSummary, error)
}

type apiBackend struct{ *client.Client }

func (b apiBackend) loadPreset(ctx context.Context, id int64) (model.Preset, error) {
	return b.Preset(ctx, id)
}

func (b apiBackend) savePreset(ctx context.Context, p model.Preset) (model.PresetSummary, error) {
	return b.SavePreset(ctx, p)
}

type dbBackend struct{ *store.Store }

func (b dbBackend) loadPreset(ctx context.Context, id int64) (model.Preset, error) {
	return b.GetPreset(ctx, id)
}

func (b dbBackend) savePreset(ctx context.Context, p model.Preset) (model.PresetSummary, error) {
	return b.InsertPreset(ctx, p)
}

func (a *app) backend(ctx context.Context, source string) (calcBackend, func(), error) {
	switch source {
	case "api":
		c := client.New(a.cfg.Client.BaseURL, a.cfg.Client.Timeout, a.log)
		return apiBackend{c}, func() {}, nil
	case "bd":
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return dbBackend{st}, func() { st.Close() }, nil
	}
	return nil, nil, fmt.Errorf("fuente desconocida %q: use api o bd", source)
}

type calcOptions struct {
	form        model.Preset
	presetID    int64
	source      string
	save        bool
	valuation   string
	strict      bool
	targetYield string
	decimals    int
}

func newCalcCommand(a *app) *cobra.Command {
	o := &calcOptions{}
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Arma la tabla de cupones y calcula la TIR",
		Example: `  cupones calc --fecha-compra 02/01/2024 --precio 0,98 --cantidad 1000 \
    --tna 10 --tipo-interes-dias 3 --fecha-emision 15/01/2023 --primera-renta 15/07 \
    --periodicidad semestral --fecha-amortizacion 15/01/2025 --porcentaje-amortizacion 50
  cupones calc --preset 3 --precio 1,02`,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := o.form
			backend, closeFn, err := a.backend(cmd.Context(), o.source)
			if err != nil {
				return err
			}
			defer closeFn()

			if o.presetID > 0 {
				saved, err := backend.loadPreset(cmd.Context(), o.presetID)
				if err != nil {
					return fmt.Errorf("cargar calculadora %d: %w", o.presetID, err)
				}
				// los flags explícitos pisan lo guardado
				for _, pf := range presetFlags {
					if cmd.Flags().Changed(pf.name) {
						*pf.field(&saved) = *pf.field(&form)
					}
				}
				if cmd.Flags().Changed("ajuste-cer") {
					saved.AjusteCER = form.AjusteCER
				}
				form = saved
			}
			if !cmd.Flags().Changed("decimales") {
				o.decimals = a.cfg.Calc.Decimals
			}
			return runCalc(cmd.Context(), a, backend, form, o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	for _, pf := range presetFlags {
		f.StringVar(pf.field(&o.form), pf.name, "", pf.usage)
	}
	f.BoolVar(&o.form.AjusteCER, "ajuste-cer", false, "ajustar capital por CER")
	f.Int64Var(&o.presetID, "preset", 0, "id de una calculadora guardada")
	f.StringVar(&o.source, "fuente", "api", "origen de los datos: api o bd")
	f.BoolVar(&o.save, "guardar", false, "guardar los parámetros como calculadora (requiere --nombre)")
	f.StringVar(&o.valuation, "fecha-valuacion", "", "fecha de valuación (por defecto la de compra)")
	f.BoolVar(&o.strict, "vigente-posterior", false, "el cupón vigente es el primer pago estrictamente posterior a la compra")
	f.StringVar(&o.targetYield, "tir-objetivo", "", "TIR en % para calcular el precio")
	f.IntVar(&o.decimals, "decimales", numfmt.DefaultDecimals, "decimales de la salida")
	return cmd
}

func runCalc(ctx context.Context, a *app, backend calcBackend, form model.Preset, o *calcOptions, out io.Writer) error {
	p, err := session.ParseParams(form)
	if err != nil {
		return err
	}
	if o.valuation != "" {
		t, ok := fecha.Parse(o.valuation)
		if !ok {
			return fmt.Errorf("%w: fecha de valuación %q", session.ErrInvalidParam, o.valuation)
		}
		p.ValuationDate = t
	}
	if o.strict {
		p.Numbering = schedule.NumberingStrictlyAfter
	}

	sess := session.New(backend, a.cfg.Cache.RateTTL, a.log)
	if _, err := sess.Autocomplete(ctx, p); err != nil {
		return err
	}
	if _, err := sess.SolveIRR(); err != nil {
		return err
	}

	places := numfmt.ClampDecimals(o.decimals)
	if err := renderTable(out, sess.Rows(), places); err != nil {
		return err
	}
	renderSummary(out, sess.Summary(), places)

	if o.targetYield != "" {
		y, ok := numfmt.Parse(o.targetYield)
		if !ok {
			return fmt.Errorf("%w: tir objetivo %q", session.ErrInvalidParam, o.targetYield)
		}
		price, err := sess.PriceForYield(y / 100)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Precio para TIR %s%%: %s\n", numfmt.Format(y, places), numfmt.Format(price, places))
	}

	if o.save {
		if p.Nombre == "" {
			return errors.New("para guardar la calculadora indique --nombre")
		}
		sum, err := backend.savePreset(ctx, form)
		if err != nil {
			return fmt.Errorf("guardar calculadora: %w", err)
		}
		fmt.Fprintf(out, "Calculadora guardada: #%d %s\n", sum.ID, sum.Nombre)
	}
	return nil
}

package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmtruffa/cupones/internal/daycount"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/numfmt"
	"github.com/jmtruffa/cupones/internal/pipeline"
	"github.com/jmtruffa/cupones/internal/schedule"
)

// ErrInvalidParam indica un parámetro del formulario mal formado.
var ErrInvalidParam = errors.New("parámetro inválido")

// Params son los parámetros ya interpretados de una calculadora.
type Params struct {
	Nombre string
	Ticker string

	PurchaseDate time.Time
	Price        *float64
	Quantity     *float64

	RateKind   pipeline.RateKind
	Formula    pipeline.Formula
	TNA        *float64
	Spread     *float64
	Convention int

	IssueDate        time.Time
	FirstPayment     string // DD/MM
	AccrualEndOffset *int
	AmortizationDate time.Time
	AmortizationPct  *float64
	Periodicity      string

	IntervalStartOffset int
	IntervalEndOffset   int
	AdjustCER           bool

	// ValuationDate cero usa la fecha de compra.
	ValuationDate time.Time
	Numbering     schedule.Numbering
}

// Valuation devuelve la fecha de valuación efectiva.
func (p Params) Valuation() time.Time {
	if !p.ValuationDate.IsZero() {
		return p.ValuationDate
	}
	return p.PurchaseDate
}

func (p Params) scheduleInput() schedule.Input {
	return schedule.Input{
		IssueDate:           p.IssueDate,
		FirstPayment:        p.FirstPayment,
		Periodicity:         p.Periodicity,
		PurchaseDate:        p.PurchaseDate,
		AmortizationDate:    p.AmortizationDate,
		ValuationDate:       p.ValuationDate,
		IntervalStartOffset: p.IntervalStartOffset,
		IntervalEndOffset:   p.IntervalEndOffset,
		AccrualEndOffset:    p.AccrualEndOffset,
		PurchasePrice:       p.Price,
		Quantity:            p.Quantity,
		Numbering:           p.Numbering,
	}
}

type parser struct {
	errs []error
}

func (ps *parser) date(field, s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, ok := fecha.Parse(s)
	if !ok {
		ps.errs = append(ps.errs, fmt.Errorf("%w: %s %q", ErrInvalidParam, field, s))
	}
	return t
}

func (ps *parser) number(field, s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v := numfmt.ParsePtr(s)
	if v == nil {
		ps.errs = append(ps.errs, fmt.Errorf("%w: %s %q", ErrInvalidParam, field, s))
	}
	return v
}

func (ps *parser) integer(field, s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		ps.errs = append(ps.errs, fmt.Errorf("%w: %s %q", ErrInvalidParam, field, s))
		return def
	}
	return n
}

// ParseParams interpreta una calculadora guardada. Los campos vacíos quedan
// sin valor; los mal formados se informan todos juntos.
func ParseParams(p model.Preset) (Params, error) {
	var ps parser
	out := Params{
		Nombre:              strings.TrimSpace(p.Nombre),
		Ticker:              strings.TrimSpace(p.Ticker),
		PurchaseDate:        ps.date("fechaCompra", p.FechaCompra),
		Price:               ps.number("precioCompra", p.PrecioCompra),
		Quantity:            ps.number("cantidadPartida", p.CantidadPartida),
		TNA:                 ps.number("rentaTNA", p.RentaTNA),
		Spread:              ps.number("spread", p.Spread),
		IssueDate:           ps.date("fechaEmision", p.FechaEmision),
		FirstPayment:        strings.TrimSpace(p.FechaPrimeraRenta),
		AmortizationDate:    ps.date("fechaAmortizacion", p.FechaAmortizacion),
		AmortizationPct:     ps.number("porcentajeAmortizacion", p.PorcentajeAmortizacion),
		Periodicity:         strings.TrimSpace(p.Periodicidad),
		IntervalStartOffset: ps.integer("intervaloInicio", p.IntervaloInicio, 0),
		IntervalEndOffset:   ps.integer("intervaloFin", p.IntervaloFin, 0),
		AdjustCER:           p.AjusteCER,
	}

	if strings.TrimSpace(p.DiasRestarFechaFinDev) != "" {
		off := ps.integer("diasRestarFechaFinDev", p.DiasRestarFechaFinDev, schedule.DefaultAccrualEndOffset)
		out.AccrualEndOffset = &off
	}

	out.Convention = ps.integer("tipoInteresDias", p.TipoInteresDias, daycount.Thirty360)
	if !daycount.Valid(out.Convention) {
		ps.errs = append(ps.errs, fmt.Errorf("%w: tipoInteresDias %q", ErrInvalidParam, p.TipoInteresDias))
	}

	kind, ok := pipeline.ParseRateKind(p.Tasa)
	if !ok {
		ps.errs = append(ps.errs, fmt.Errorf("%w: tasa %q", ErrInvalidParam, p.Tasa))
	}
	out.RateKind = kind

	formula, ok := pipeline.ParseFormula(p.Formula)
	if !ok {
		ps.errs = append(ps.errs, fmt.Errorf("%w: formula %q", ErrInvalidParam, p.Formula))
	}
	out.Formula = formula

	if out.FirstPayment != "" {
		if _, _, ok := fecha.ParseDayMonth(out.FirstPayment); !ok {
			ps.errs = append(ps.errs, fmt.Errorf("%w: fechaPrimeraRenta %q", ErrInvalidParam, out.FirstPayment))
		}
	}
	if out.Periodicity != "" {
		if _, ok := schedule.PeriodMonths(out.Periodicity); !ok {
			ps.errs = append(ps.errs, fmt.Errorf("%w: periodicidad %q", ErrInvalidParam, out.Periodicity))
		}
	}
	return out, errors.Join(ps.errs...)
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	// coma decimal: un punto con tres decimales se leería como miles
	return strings.Replace(strconv.FormatFloat(*v, 'f', -1, 64), ".", ",", 1)
}

// Preset convierte los parámetros al formato guardado (fechas DD/MM/YYYY).
func (p Params) Preset() model.Preset {
	out := model.Preset{
		Nombre:                 p.Nombre,
		Ticker:                 p.Ticker,
		FechaCompra:            fecha.Display(p.PurchaseDate),
		PrecioCompra:           formatNumber(p.Price),
		CantidadPartida:        formatNumber(p.Quantity),
		Tasa:                   string(p.RateKind),
		RentaTNA:               formatNumber(p.TNA),
		Spread:                 formatNumber(p.Spread),
		TipoInteresDias:        strconv.Itoa(p.Convention),
		FechaEmision:           fecha.Display(p.IssueDate),
		FechaPrimeraRenta:      p.FirstPayment,
		FechaAmortizacion:      fecha.Display(p.AmortizationDate),
		PorcentajeAmortizacion: formatNumber(p.AmortizationPct),
		Periodicidad:           p.Periodicity,
		IntervaloInicio:        strconv.Itoa(p.IntervalStartOffset),
		IntervaloFin:           strconv.Itoa(p.IntervalEndOffset),
		AjusteCER:              p.AdjustCER,
	}
	if p.Formula.N > 0 {
		out.Formula = "promedio-" + strconv.Itoa(p.Formula.N)
	} else if p.RateKind != pipeline.RateFixed {
		out.Formula = "promedio"
	}
	if p.AccrualEndOffset != nil {
		out.DiasRestarFechaFinDev = strconv.Itoa(*p.AccrualEndOffset)
	}
	return out
}

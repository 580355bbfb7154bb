// Package pipeline recalcula los valores derivados de la tabla de
// amortización. El orden de las pasadas es fijo:
//
//  1. ResetDerived: limpia todo lo derivado.
//  2. ResidualAtStart: residual al inicio de los cupones visibles.
//  3. AssignAmortization: amortización por cupón, de atrás hacia adelante.
//  4. ForwardPass: residual, ajuste CER, renta nominal y ajustada.
//  5. CashFlowPass: flujos de la inversión y de cada cupón.
//  6. DiscountPass: factores de actualización y flujos descontados (con TIR).
//
// Run puede ejecutarse cualquier cantidad de veces sobre las mismas filas.
package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/daycount"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/rates"
)

// RateKind es el tipo de tasa del cupón.
type RateKind string

const (
	RateFixed  RateKind = "fija"
	RateBADLAR RateKind = "badlar"
	RateTAMAR  RateKind = "tamar"
)

// ParseRateKind acepta el valor del formulario; vacío es tasa fija.
func ParseRateKind(s string) (RateKind, bool) {
	switch RateKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", RateFixed:
		return RateFixed, true
	case RateBADLAR:
		return RateBADLAR, true
	case RateTAMAR:
		return RateTAMAR, true
	}
	return "", false
}

// Formula indica cómo se promedia una tasa variable.
type Formula struct {
	// N == 0: promedio de la ventana [inicio intervalo, fin intervalo].
	// N > 0: promedio de las últimas N tasas hábiles hasta el fin del intervalo.
	N int
}

// ParseFormula interpreta "promedio" y "promedio-N" (también "ultimas-N").
func ParseFormula(s string) (Formula, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "promedio" {
		return Formula{}, true
	}
	for _, prefix := range []string{"promedio-", "ultimas-"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			n, err := strconv.Atoi(rest)
			if err != nil || n <= 0 {
				return Formula{}, false
			}
			return Formula{N: n}, true
		}
	}
	return Formula{}, false
}

// Inputs son los parámetros de la calculadora que usa el recálculo.
type Inputs struct {
	Convention int

	// AmortizationPct es el porcentaje por período; nil es bullet (100).
	AmortizationPct *float64
	// TotalCoupons es el número del último cupón; 0 toma el de la última fila.
	TotalCoupons int

	RateKind   RateKind
	Formula    Formula
	TNA        *float64 // tasa fija, en %
	Spread     *float64 // sobre tasa variable, en %
	RateSeries *rates.Series
	Calendar   *calendar.Calendar

	AdjustCER bool
	// CERBase es el CER de emisión (fecha de emisión + intervalo inicio).
	CERBase *float64

	Price    *float64
	Quantity *float64

	PurchaseDate  time.Time
	ValuationDate time.Time // cero: fecha de compra

	// IRR es la última TIR calculada; sin ella no se actualiza ni descuenta.
	IRR *float64
}

func (in Inputs) valuation() time.Time {
	if !in.ValuationDate.IsZero() {
		return in.ValuationDate
	}
	return in.PurchaseDate
}

func (in Inputs) amortizationPct() float64 {
	if in.AmortizationPct == nil || *in.AmortizationPct <= 0 || *in.AmortizationPct > 100 {
		return 100
	}
	return *in.AmortizationPct
}

// Result resume una ejecución.
type Result struct {
	ResidualAtStart float64
}

// Run ejecuta todas las pasadas en orden.
func Run(rows []model.Row, in Inputs) Result {
	ResetDerived(rows)
	start := ResidualAtStart(rows, in)
	AssignAmortization(rows, in, start)
	ForwardPass(rows, in, start)
	CashFlowPass(rows, in)
	DiscountPass(rows, in)
	return Result{ResidualAtStart: start}
}

func coupons(rows []model.Row) []int {
	idx := make([]int, 0, len(rows))
	for i := range rows {
		if !rows[i].IsInvestment() {
			idx = append(idx, i)
		}
	}
	return idx
}

// ResetDerived deja en nil todos los campos calculados. Fechas, valores CER
// y cargas manuales se conservan.
func ResetDerived(rows []model.Row) {
	for i := range rows {
		r := &rows[i]
		r.DayCountFactor = nil
		r.AmortizationPct = nil
		r.ResidualBalancePct = nil
		r.IndexCoefficient = nil
		r.AdjustedAmortizationPct = nil
		r.NominalRate = nil
		r.NominalIncomePct = nil
		r.AdjustedIncomePct = nil
		r.DiscountFactor = nil
		r.ActualizedPayment = nil
		r.CashFlow = nil
		r.DiscountedCashFlow = nil
	}
}

// ResidualAtStart calcula el residual antes del primer cupón visible. Si ese
// cupón no es el primero de la emisión, descuenta los períodos de
// amortización ya transcurridos: la amortización arranca en el cupón
// total - ceil(100/pct) + 1.
func ResidualAtStart(rows []model.Row, in Inputs) float64 {
	idx := coupons(rows)
	if len(idx) == 0 {
		return 100
	}
	k := rows[idx[0]].CouponNumber
	if k <= 1 {
		return 100
	}
	total := in.TotalCoupons
	if total == 0 {
		total = rows[idx[len(idx)-1]].CouponNumber
	}
	pct := in.amortizationPct()
	firstAmortizing := total - int(math.Ceil(100/pct)) + 1
	elapsed := max(0, k-firstAmortizing)
	amortized := math.Min(100, math.Max(0, float64(elapsed)*pct))
	return 100 - amortized
}

// AssignAmortization reparte el residual inicial desde el último cupón hacia
// el primero: cada cupón toma min(pct, restante). Lo que sobra al llegar al
// primero se suma a éste.
func AssignAmortization(rows []model.Row, in Inputs, residualAtStart float64) {
	idx := coupons(rows)
	if len(idx) == 0 {
		return
	}
	pct := in.amortizationPct()
	remaining := residualAtStart
	for j := len(idx) - 1; j >= 0; j-- {
		r := &rows[idx[j]]
		amt := pct
		if r.ManualAmortizationPct != nil {
			amt = *r.ManualAmortizationPct
		}
		amt = math.Max(0, math.Min(amt, remaining))
		r.AmortizationPct = model.Float(amt)
		remaining -= amt
	}
	if remaining > 1e-12 {
		first := &rows[idx[0]]
		first.AmortizationPct = model.Float(*first.AmortizationPct + remaining)
	}
}

// ForwardPass recorre los cupones en orden de fecha con el residual
// acumulado.
func ForwardPass(rows []model.Row, in Inputs, residualAtStart float64) {
	residual := residualAtStart
	for n, i := range coupons(rows) {
		r := &rows[i]
		r.ResidualBalancePct = model.Float(residual)

		if f, ok := daycount.Factor(r.AccrualStart, r.AccrualEnd, in.Convention); ok {
			r.DayCountFactor = model.Float(f)
		}

		coef, coefOK := indexCoefficient(r, in)
		if coefOK {
			r.IndexCoefficient = model.Float(coef)
		}

		if r.AmortizationPct != nil && coefOK {
			r.AdjustedAmortizationPct = model.Float(*r.AmortizationPct * coef)
		}

		if rate, ok := nominalRate(r, in, n == 0); ok {
			r.NominalRate = model.Float(rate)
			if r.DayCountFactor != nil {
				income := rate * *r.DayCountFactor
				r.NominalIncomePct = model.Float(income)
				if coefOK {
					r.AdjustedIncomePct = model.Float(income * coef * residual / 100)
				}
			}
		}

		if r.AmortizationPct != nil {
			residual -= *r.AmortizationPct
		}
	}
}

// indexCoefficient es CER fin de intervalo / CER base, o 1 sin ajuste CER.
func indexCoefficient(r *model.Row, in Inputs) (float64, bool) {
	if !in.AdjustCER {
		return 1, true
	}
	if in.CERBase == nil || *in.CERBase == 0 || r.IndexValueEnd == nil {
		return 0, false
	}
	return *r.IndexValueEnd / *in.CERBase, true
}

func nominalRate(r *model.Row, in Inputs, vigente bool) (float64, bool) {
	if r.ManualNominalRate != nil {
		return *r.ManualNominalRate, true
	}
	switch in.RateKind {
	case RateBADLAR, RateTAMAR:
		var avg float64
		var ok bool
		if in.Formula.N > 0 {
			avg, _, ok = in.RateSeries.NTasas(r.IntervalEnd, in.Formula.N, in.Calendar, rates.NTasasOptions{
				Vigente: vigente,
				Cutoff:  in.valuation(),
			})
		} else {
			avg, ok = in.RateSeries.WindowAverage(r.IntervalStart, r.IntervalEnd)
		}
		if !ok {
			return 0, false
		}
		if in.Spread != nil {
			avg += *in.Spread
		}
		return avg, true
	default:
		if in.TNA == nil {
			return 0, false
		}
		return *in.TNA, true
	}
}

// CashFlowPass calcula los flujos. Un flujo sin datos suficientes queda en
// nil (no en cero) y no participa de la TIR.
func CashFlowPass(rows []model.Row, in Inputs) {
	for i := range rows {
		r := &rows[i]
		if r.IsInvestment() {
			if in.Price == nil || in.Quantity == nil {
				continue
			}
			coef, ok := indexCoefficient(r, in)
			if !ok {
				continue
			}
			if in.AdjustCER {
				r.IndexCoefficient = model.Float(coef)
			}
			r.CashFlow = model.Float(-(*in.Quantity * *in.Price * coef))
			continue
		}
		if in.Quantity == nil || r.AdjustedAmortizationPct == nil || r.AdjustedIncomePct == nil {
			continue
		}
		r.CashFlow = model.Float(*in.Quantity * (*r.AdjustedAmortizationPct + *r.AdjustedIncomePct) / 100)
	}
}

// DiscountPass usa la última TIR: factor de actualización
// (1+TIR)^fracción(liquidación, valuación), pago actualizado y flujo
// descontado a la fecha de compra.
func DiscountPass(rows []model.Row, in Inputs) {
	if in.IRR == nil {
		return
	}
	irr := *in.IRR
	valuation := in.valuation()
	for i := range rows {
		r := &rows[i]
		if !r.IsInvestment() && !r.SettlementDate.IsZero() {
			if yf, ok := daycount.YearFraction(r.SettlementDate, valuation, in.Convention); ok {
				df := math.Pow(1+irr, yf)
				r.DiscountFactor = model.Float(df)
				if r.AdjustedAmortizationPct != nil && r.AdjustedIncomePct != nil {
					r.ActualizedPayment = model.Float((*r.AdjustedAmortizationPct + *r.AdjustedIncomePct) / 100 * df)
				}
			}
		}
		if r.CashFlow == nil || r.SettlementDate.IsZero() {
			continue
		}
		yf, ok := daycount.YearFraction(in.PurchaseDate, r.SettlementDate, in.Convention)
		if !ok {
			continue
		}
		if yf > 0 {
			r.DiscountedCashFlow = model.Float(*r.CashFlow / math.Pow(1+irr, yf))
		} else {
			r.DiscountedCashFlow = model.Float(*r.CashFlow)
		}
	}
}

// Totals suma los flujos descontados y los pagos actualizados.
type Totals struct {
	DiscountedCashFlows float64
	ActualizedPayments  float64
	// TechnicalValue es residual + renta corrida a la fecha de valuación, en
	// % del valor nominal ajustado.
	TechnicalValue *float64
}

// Sum calcula los totales de una tabla ya recalculada.
func Sum(rows []model.Row, in Inputs) Totals {
	var t Totals
	for i := range rows {
		r := &rows[i]
		if r.DiscountedCashFlow != nil {
			t.DiscountedCashFlows += *r.DiscountedCashFlow
		}
		if r.ActualizedPayment != nil {
			t.ActualizedPayments += *r.ActualizedPayment
		}
	}
	t.TechnicalValue = technicalValue(rows, in)
	return t
}

// technicalValue toma el cupón cuyo devengamiento contiene la fecha de
// valuación: residual + renta devengada hasta esa fecha.
func technicalValue(rows []model.Row, in Inputs) *float64 {
	valuation := in.valuation()
	if valuation.IsZero() {
		return nil
	}
	for _, i := range coupons(rows) {
		r := &rows[i]
		if r.ResidualBalancePct == nil || r.NominalRate == nil {
			continue
		}
		if valuation.Before(r.AccrualStart) || valuation.After(r.AccrualEnd) {
			continue
		}
		accrued, ok := daycount.Factor(r.AccrualStart, valuation.AddDate(0, 0, -1), in.Convention)
		if !ok {
			return nil
		}
		v := *r.ResidualBalancePct * (1 + *r.NominalRate/100*accrued)
		if r.IndexCoefficient != nil {
			v *= *r.IndexCoefficient
		}
		return &v
	}
	return nil
}

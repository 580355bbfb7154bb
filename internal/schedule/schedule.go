// Package schedule genera las fechas de pago de cupones y arma las filas de
// la tabla de amortización (fechas, intervalos y valores CER).
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/rates"
)

const (
	// MaxCoupons limita la emisión de cupones.
	MaxCoupons = 120
	// DefaultAccrualEndOffset es el ajuste de la fecha fin de devengamiento.
	DefaultAccrualEndOffset = -1
	// WindowMarginDays se suma al mayor intervalo al cargar feriados y CER.
	WindowMarginDays = 30
	// DefaultHorizonYears acota la emisión cuando no hay fecha de amortización.
	DefaultHorizonYears = 10
)

// Numbering define cuál es el cupón vigente a la fecha de compra.
type Numbering int

const (
	// NumberingOnOrAfter: el vigente es el primer pago >= fecha de compra.
	NumberingOnOrAfter Numbering = iota
	// NumberingStrictlyAfter: el vigente es el primer pago > fecha de compra.
	NumberingStrictlyAfter
)

var periodMonths = map[string]int{
	"mensual":    1,
	"bimestral":  2,
	"trimestral": 3,
	"semestral":  6,
	"anual":      12,
}

// PeriodMonths devuelve los meses por período de una periodicidad.
func PeriodMonths(periodicidad string) (int, bool) {
	m, ok := periodMonths[strings.ToLower(strings.TrimSpace(periodicidad))]
	return m, ok
}

// Input reúne los parámetros del cronograma.
type Input struct {
	IssueDate        time.Time
	FirstPayment     string // DD/MM
	Periodicity      string
	PurchaseDate     time.Time
	AmortizationDate time.Time // cero: sin fecha de amortización
	ValuationDate    time.Time // cero: sin fecha de valuación

	IntervalStartOffset int
	IntervalEndOffset   int
	// AccrualEndOffset nil equivale a DefaultAccrualEndOffset.
	AccrualEndOffset *int

	PurchasePrice *float64
	Quantity      *float64

	Numbering Numbering
}

func (in Input) accrualEndOffset() int {
	if in.AccrualEndOffset == nil {
		return DefaultAccrualEndOffset
	}
	return *in.AccrualEndOffset
}

// Payment es una fecha de pago sin ajustar y su número de cupón (1 = primer
// pago posterior a la emisión).
type Payment struct {
	Date   time.Time
	Number int
}

// terms agrupa el día/mes de pago y la periodicidad ya validados.
type terms struct {
	day    int
	month  time.Month
	months int
}

func parseTerms(in Input) (terms, bool) {
	day, month, ok := fecha.ParseDayMonth(in.FirstPayment)
	if !ok {
		return terms{}, false
	}
	months, ok := PeriodMonths(in.Periodicity)
	if !ok {
		return terms{}, false
	}
	return terms{day: day, month: month, months: months}, true
}

// onGrid devuelve el día de pago desplazado shift meses desde (year, month).
// Se calcula siempre desde el día original para no arrastrar recortes de fin
// de mes.
func (t terms) onGrid(year int, shift int) time.Time {
	idx := year*12 + int(t.month) - 1 + shift
	y, m := idx/12, idx%12
	if m < 0 {
		m += 12
		y--
	}
	return fecha.InYear(y, time.Month(m+1), t.day)
}

// firstPayment es el día/mes de pago en el año de emisión, o en el siguiente
// si cae antes de la emisión.
func (t terms) firstPayment(issue time.Time) time.Time {
	first := t.onGrid(issue.Year(), 0)
	if first.Before(issue) {
		first = t.onGrid(issue.Year()+1, 0)
	}
	return first
}

// anchorOnOrBefore es la fecha de la grilla de pagos más cercana <= d.
func (t terms) anchorOnOrBefore(d time.Time) time.Time {
	k := 0
	for t.onGrid(d.Year(), k*t.months).After(d) {
		k--
	}
	for !t.onGrid(d.Year(), (k+1)*t.months).After(d) {
		k++
	}
	return t.onGrid(d.Year(), k*t.months)
}

// PaymentDates devuelve el cupón vigente a la fecha de compra y los
// siguientes hasta la fecha de amortización (inclusive) o, sin ella, hasta
// 10 años desde la emisión. Sin día/mes válido o periodicidad conocida
// devuelve nil.
func PaymentDates(in Input) []Payment {
	if in.IssueDate.IsZero() {
		return nil
	}
	t, ok := parseTerms(in)
	if !ok {
		return nil
	}
	first := t.firstPayment(in.IssueDate)
	at := func(k int) time.Time {
		return t.onGrid(first.Year(), k*t.months)
	}

	k := 0
	if !in.PurchaseDate.IsZero() {
		for n := 0; n < MaxCoupons; n++ {
			d := at(k)
			if in.Numbering == NumberingStrictlyAfter && d.After(in.PurchaseDate) {
				break
			}
			if in.Numbering == NumberingOnOrAfter && !d.Before(in.PurchaseDate) {
				break
			}
			k++
		}
	}

	limit := in.AmortizationDate
	if limit.IsZero() {
		limit = in.IssueDate.AddDate(DefaultHorizonYears, 0, 0)
	}

	var out []Payment
	for n := 0; n <= MaxCoupons; n++ {
		d := at(k + n)
		if d.After(limit) {
			break
		}
		out = append(out, Payment{Date: d, Number: k + n + 1})
		if !in.AmortizationDate.IsZero() && !d.Before(in.AmortizationDate) {
			break
		}
	}
	return out
}

// Window es el rango de fechas a cargar (feriados y CER) para armar el
// cronograma: desde la menor hasta la mayor fecha involucrada, con un margen
// de max(|intervaloInicio|, |intervaloFin|) + 30 días.
func Window(in Input, payments []Payment) (from, to time.Time, ok bool) {
	dates := []time.Time{in.IssueDate, in.PurchaseDate, in.ValuationDate, in.AmortizationDate}
	for _, p := range payments {
		dates = append(dates, p.Date)
	}
	from, to = fecha.Min(dates...), fecha.Max(dates...)
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	margin := max(abs(in.IntervalStartOffset), abs(in.IntervalEndOffset)) + WindowMarginDays
	return from.AddDate(0, 0, -margin), to.AddDate(0, 0, margin), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// IDFunc genera identificadores de fila.
type IDFunc func() string

// SequentialIDs numera las filas desde 1.
func SequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return strconv.Itoa(n)
	}
}

// Build arma la fila de inversión y una fila por cupón. Con parámetros
// inválidos devuelve nil.
func Build(in Input, cal *calendar.Calendar, cer *rates.Series, ids IDFunc) []model.Row {
	payments := PaymentDates(in)
	if len(payments) == 0 {
		return nil
	}
	t, _ := parseTerms(in)
	if ids == nil {
		ids = SequentialIDs()
	}

	rows := make([]model.Row, 0, len(payments)+1)
	rows = append(rows, investmentRow(in, cal, cer))

	offset := in.accrualEndOffset()
	accrualEnd := func(payment time.Time) time.Time {
		return t.anchorOnOrBefore(payment).AddDate(0, 0, offset)
	}

	var prevEnd time.Time
	if payments[0].Number == 1 {
		prevEnd = in.IssueDate.AddDate(0, 0, -1)
	} else {
		// fin de devengamiento del pago anterior de la grilla
		prevEnd = accrualEnd(payments[0].Date.AddDate(0, 0, -1))
	}

	for i, p := range payments {
		r := model.Row{
			ID:           ids(),
			CouponNumber: p.Number,
			PaymentDate:  p.Date,
			AccrualStart: prevEnd.AddDate(0, 0, 1),
			AccrualEnd:   accrualEnd(p.Date),
		}
		last := i == len(payments)-1
		if last && !in.AmortizationDate.IsZero() {
			r.SettlementDate = cal.NextBusinessDay(in.AmortizationDate)
		} else {
			r.SettlementDate = cal.NextBusinessDay(p.Date)
		}
		r.IntervalStart = intervalDate(cal, r.AccrualStart, in.IntervalStartOffset, in.ValuationDate)
		r.IntervalEnd = intervalDate(cal, r.SettlementDate, in.IntervalEndOffset, in.ValuationDate)
		r.IndexValueStart = cer.PointPtr(r.IntervalStart)
		r.IndexValueEnd = cer.PointPtr(r.IntervalEnd)

		rows = append(rows, r)
		prevEnd = r.AccrualEnd
	}
	return rows
}

func investmentRow(in Input, cal *calendar.Calendar, cer *rates.Series) model.Row {
	r := model.Row{ID: model.RowIDInversion}
	if in.PurchaseDate.IsZero() {
		return r
	}
	r.SettlementDate = cal.NextBusinessDay(in.PurchaseDate)
	r.IntervalEnd = intervalDate(cal, in.PurchaseDate, in.IntervalEndOffset, in.ValuationDate)
	r.IndexValueEnd = cer.PointPtr(r.IntervalEnd)
	if in.PurchasePrice != nil && in.Quantity != nil {
		r.CashFlow = model.Float(-(*in.PurchasePrice * *in.Quantity))
	}
	return r
}

// intervalDate desplaza base n días hábiles; si el resultado supera la fecha
// de valuación se desplaza desde ésta.
func intervalDate(cal *calendar.Calendar, base time.Time, n int, valuation time.Time) time.Time {
	d := cal.AddBusinessDays(base, n)
	if !valuation.IsZero() && d.After(valuation) {
		d = cal.AddBusinessDays(valuation, n)
	}
	return d
}

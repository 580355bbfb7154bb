package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/rates"
)

var d = fecha.MustParse

func dates(ps []Payment) []time.Time {
	out := make([]time.Time, len(ps))
	for i, p := range ps {
		out[i] = p.Date
	}
	return out
}

func semestral() Input {
	return Input{
		IssueDate:    d("2023-01-15"),
		FirstPayment: "15/07",
		Periodicity:  "semestral",
		PurchaseDate: d("2024-01-01"),
	}
}

func TestPaymentDatesSemestral(t *testing.T) {
	ps := PaymentDates(semestral())
	require.NotEmpty(t, ps)

	// vigente: primer pago >= compra
	assert.Equal(t, d("2024-01-15"), ps[0].Date)
	assert.Equal(t, 2, ps[0].Number)
	assert.Equal(t, []time.Time{d("2024-07-15"), d("2025-01-15"), d("2025-07-15")}, dates(ps[1:4]))
	assert.Equal(t, 3, ps[1].Number)

	// sin amortización: hasta 10 años desde la emisión, inclusive
	assert.Equal(t, d("2033-01-15"), ps[len(ps)-1].Date)
	assert.Len(t, ps, 19)
}

func TestPaymentDatesStopsAtAmortization(t *testing.T) {
	in := semestral()
	in.AmortizationDate = d("2025-07-15")
	assert.Equal(t,
		[]time.Time{d("2024-01-15"), d("2024-07-15"), d("2025-01-15"), d("2025-07-15")},
		dates(PaymentDates(in)))

	in.AmortizationDate = d("2025-05-01")
	assert.Equal(t,
		[]time.Time{d("2024-01-15"), d("2024-07-15"), d("2025-01-15")},
		dates(PaymentDates(in)))
}

func TestPaymentDatesFirstPaymentNextYear(t *testing.T) {
	in := Input{
		IssueDate:    d("2023-08-01"),
		FirstPayment: "15/07",
		Periodicity:  "anual",
		PurchaseDate: d("2023-08-01"),
	}
	ps := PaymentDates(in)
	require.NotEmpty(t, ps)
	assert.Equal(t, d("2024-07-15"), ps[0].Date)
	assert.Equal(t, 1, ps[0].Number)
}

func TestPaymentDatesEndOfMonthDoesNotDrift(t *testing.T) {
	in := Input{
		IssueDate:        d("2024-01-10"),
		FirstPayment:     "31/01",
		Periodicity:      "mensual",
		PurchaseDate:     d("2024-01-10"),
		AmortizationDate: d("2024-06-30"),
	}
	assert.Equal(t, []time.Time{
		d("2024-01-31"), d("2024-02-29"), d("2024-03-31"),
		d("2024-04-30"), d("2024-05-31"), d("2024-06-30"),
	}, dates(PaymentDates(in)))
}

func TestPaymentDatesInvalidInput(t *testing.T) {
	for name, mutate := range map[string]func(*Input){
		"dia/mes sin cero":  func(in *Input) { in.FirstPayment = "15/7" },
		"con año":           func(in *Input) { in.FirstPayment = "15/07/2024" },
		"vacío":             func(in *Input) { in.FirstPayment = "" },
		"periodicidad":      func(in *Input) { in.Periodicity = "semanal" },
		"sin fecha emisión": func(in *Input) { in.IssueDate = time.Time{} },
	} {
		t.Run(name, func(t *testing.T) {
			in := semestral()
			mutate(&in)
			assert.Empty(t, PaymentDates(in))
			assert.Nil(t, Build(in, nil, nil, nil))
		})
	}
}

func TestPaymentDatesCapped(t *testing.T) {
	in := Input{
		IssueDate:        d("2000-01-01"),
		FirstPayment:     "01/02",
		Periodicity:      "mensual",
		PurchaseDate:     d("2000-01-01"),
		AmortizationDate: d("2050-01-01"),
	}
	assert.Len(t, PaymentDates(in), MaxCoupons+1)
}

// La compra cae justo en una fecha de pago. Los dos criterios de numeración
// difieren en ese caso; el criterio por defecto (>= compra) queda pendiente de
// confirmación de producto.
func TestNumberingPurchaseOnPaymentDateNeedsProductConfirmation(t *testing.T) {
	in := semestral()
	in.PurchaseDate = d("2024-01-15")

	onOrAfter := PaymentDates(in)
	require.NotEmpty(t, onOrAfter)
	assert.Equal(t, d("2024-01-15"), onOrAfter[0].Date)
	assert.Equal(t, 2, onOrAfter[0].Number)

	in.Numbering = NumberingStrictlyAfter
	strict := PaymentDates(in)
	require.NotEmpty(t, strict)
	assert.Equal(t, d("2024-07-15"), strict[0].Date)
	assert.Equal(t, 3, strict[0].Number)
}

func TestWindow(t *testing.T) {
	in := semestral()
	in.IntervalStartOffset = -2
	in.IntervalEndOffset = -10
	from, to, ok := Window(in, PaymentDates(in))
	require.True(t, ok)
	assert.Equal(t, d("2023-01-15").AddDate(0, 0, -40), from)
	assert.Equal(t, d("2033-01-15").AddDate(0, 0, 40), to)

	_, _, ok = Window(Input{}, nil)
	assert.False(t, ok)
}

func TestBuild(t *testing.T) {
	in := semestral()
	in.AmortizationDate = d("2025-07-15")
	in.IntervalStartOffset = -2
	in.IntervalEndOffset = -2
	in.PurchasePrice = model.Float(0.98)
	in.Quantity = model.Float(1000)

	cer := rates.NewSeries([]model.Observation{
		{Fecha: fecha.Fecha(d("2023-07-01")), Valor: 100},
		{Fecha: fecha.Fecha(d("2024-01-01")), Valor: 120},
		{Fecha: fecha.Fecha(d("2024-07-01")), Valor: 140},
	})
	rows := Build(in, calendar.New(), cer, nil)
	require.Len(t, rows, 5)

	inv := rows[0]
	assert.True(t, inv.IsInvestment())
	assert.Equal(t, d("2024-01-01"), inv.SettlementDate)
	assert.Equal(t, d("2023-12-28"), inv.IntervalEnd)
	require.NotNil(t, inv.CashFlow)
	assert.InDelta(t, -980.0, *inv.CashFlow, 1e-9)
	require.NotNil(t, inv.IndexValueEnd)
	assert.Equal(t, 100.0, *inv.IndexValueEnd)

	first := rows[1]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, 2, first.CouponNumber)
	assert.Equal(t, d("2023-07-15"), first.AccrualStart)
	assert.Equal(t, d("2024-01-14"), first.AccrualEnd)
	assert.Equal(t, d("2024-01-15"), first.SettlementDate)
	assert.Equal(t, d("2023-07-13"), first.IntervalStart)
	assert.Equal(t, d("2024-01-11"), first.IntervalEnd)
	require.NotNil(t, first.IndexValueStart)
	assert.Equal(t, 100.0, *first.IndexValueStart)
	assert.Equal(t, 120.0, *first.IndexValueEnd)

	// cada período arranca al día siguiente del fin del anterior
	for i := 2; i < len(rows); i++ {
		assert.Equal(t, rows[i-1].AccrualEnd.AddDate(0, 0, 1), rows[i].AccrualStart)
	}
	assert.Equal(t, d("2025-07-14"), rows[4].AccrualEnd)
	assert.Equal(t, d("2025-07-15"), rows[4].SettlementDate)
	assert.Equal(t, "4", rows[4].ID)
}

func TestBuildFirstCouponAccruesFromIssue(t *testing.T) {
	in := semestral()
	in.PurchaseDate = d("2023-02-01")
	rows := Build(in, nil, nil, nil)
	require.True(t, len(rows) > 1)
	assert.Equal(t, 1, rows[1].CouponNumber)
	assert.Equal(t, d("2023-01-15"), rows[1].AccrualStart)
	assert.Equal(t, d("2023-07-14"), rows[1].AccrualEnd)
	assert.Nil(t, rows[0].CashFlow, "sin precio ni cantidad")
}

func TestBuildLastCouponSettlesOnAmortizationDate(t *testing.T) {
	in := semestral()
	// sábado, con feriado el lunes siguiente
	in.AmortizationDate = d("2025-07-12")
	rows := Build(in, calendar.New(d("2025-07-14")), nil, nil)
	require.Len(t, rows, 4)
	assert.Equal(t, d("2025-01-15"), rows[3].PaymentDate)
	assert.Equal(t, d("2025-07-15"), rows[3].SettlementDate)
}

func TestBuildCapsIntervalsAtValuation(t *testing.T) {
	in := semestral()
	in.AmortizationDate = d("2025-07-15")
	in.IntervalEndOffset = -2
	in.ValuationDate = d("2024-06-30")
	rows := Build(in, nil, nil, nil)
	require.Len(t, rows, 5)
	assert.Equal(t, d("2024-01-11"), rows[1].IntervalEnd)
	assert.Equal(t, d("2024-06-27"), rows[2].IntervalEnd)
	assert.Equal(t, d("2024-06-27"), rows[4].IntervalEnd)
}

func TestSequentialIDs(t *testing.T) {
	next := SequentialIDs()
	assert.Equal(t, "1", next())
	assert.Equal(t, "2", next())
}

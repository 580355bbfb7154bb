package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/numfmt"
	"github.com/jmtruffa/cupones/internal/session"
)

var tableHeader = []string{
	"Cupón", "Pago", "Liquidación", "Inicio dev.", "Fin dev.", "Factor",
	"Amort. %", "Residual %", "Coef. CER", "Tasa %", "Renta %", "Flujo", "Flujo desc.",
}

// renderTable escribe la tabla de cupones alineada en columnas. Los valores
// sin calcular quedan vacíos.
func renderTable(w io.Writer, rows []model.Row, places int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(tableHeader, "\t")+"\t")
	num := func(v *float64) string { return numfmt.FormatPtr(v, places) }
	for _, r := range rows {
		label := strconv.Itoa(r.CouponNumber)
		if r.IsInvestment() {
			label = "Inv."
		}
		cells := []string{
			label,
			fecha.Display(r.PaymentDate),
			fecha.Display(r.SettlementDate),
			fecha.Display(r.AccrualStart),
			fecha.Display(r.AccrualEnd),
			num(r.DayCountFactor),
			num(r.AmortizationPct),
			num(r.ResidualBalancePct),
			num(r.IndexCoefficient),
			num(r.NominalRate),
			num(r.NominalIncomePct),
			num(r.CashFlow),
			num(r.DiscountedCashFlow),
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func renderSummary(w io.Writer, s session.Summary, places int) {
	fmt.Fprintln(w)
	if s.IRR != nil {
		state := "convergió"
		if !s.IRR.Converged {
			state = "sin convergencia"
		}
		fmt.Fprintf(w, "TIR: %s (%s, %d iteraciones)\n", numfmt.Percent(s.IRR.Rate, places), state, s.IRR.Iterations)
	}
	fmt.Fprintf(w, "Suma flujos descontados: %s\n", numfmt.Format(s.DiscountedCashFlows, places))
	fmt.Fprintf(w, "Suma pagos actualizados: %s\n", numfmt.Format(s.ActualizedPayments, places))
	if s.TechnicalValue != nil {
		fmt.Fprintf(w, "Valor técnico: %s\n", numfmt.Format(*s.TechnicalValue, places))
	}
	if s.ValuationCER != nil {
		fmt.Fprintf(w, "CER valuación: %s\n", numfmt.Format(*s.ValuationCER, places))
	}
}

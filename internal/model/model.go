// Package model contiene los registros compartidos entre el servicio de datos
// de referencia, el cliente y el motor de la calculadora.
package model

import (
	"time"

	"github.com/jmtruffa/cupones/internal/fecha"
)

// Holiday es un feriado, único por fecha.
type Holiday struct {
	Fecha  fecha.Fecha `json:"fecha" binding:"required"`
	Nombre string      `json:"nombre"`
	Tipo   string      `json:"tipo"`
}

// Observation es un valor de una serie (CER, BADLAR, TAMAR), único por fecha.
type Observation struct {
	Fecha fecha.Fecha `json:"fecha" binding:"required"`
	Valor float64     `json:"valor"`
}

// Series identifica una serie de referencia.
type Series string

const (
	SeriesCER    Series = "cer"
	SeriesBADLAR Series = "badlar"
	SeriesTAMAR  Series = "tamar"
)

// AllSeries en el orden en que se exponen.
var AllSeries = []Series{SeriesCER, SeriesBADLAR, SeriesTAMAR}

// Valid reporta si s es una serie conocida.
func (s Series) Valid() bool {
	for _, k := range AllSeries {
		if s == k {
			return true
		}
	}
	return false
}

// Preset es una calculadora guardada: sólo los parámetros crudos del
// formulario, tal como los ingresó el usuario.
type Preset struct {
	ID                     int64     `json:"id,omitempty"`
	Nombre                 string    `json:"nombre" binding:"required"`
	FechaCompra            string    `json:"fechaCompra"`
	PrecioCompra           string    `json:"precioCompra"`
	CantidadPartida        string    `json:"cantidadPartida"`
	Ticker                 string    `json:"ticker"`
	Tasa                   string    `json:"tasa"`
	Formula                string    `json:"formula"`
	RentaTNA               string    `json:"rentaTNA"`
	Spread                 string    `json:"spread"`
	TipoInteresDias        string    `json:"tipoInteresDias"`
	FechaEmision           string    `json:"fechaEmision"`
	FechaPrimeraRenta      string    `json:"fechaPrimeraRenta"`
	DiasRestarFechaFinDev  string    `json:"diasRestarFechaFinDev"`
	FechaAmortizacion      string    `json:"fechaAmortizacion"`
	PorcentajeAmortizacion string    `json:"porcentajeAmortizacion"`
	Periodicidad           string    `json:"periodicidad"`
	IntervaloInicio        string    `json:"intervaloInicio"`
	IntervaloFin           string    `json:"intervaloFin"`
	AjusteCER              bool      `json:"ajusteCER"`
	FechaCreacion          time.Time `json:"fecha_creacion,omitempty"`
}

// PresetSummary es lo que devuelve el alta y el listado.
type PresetSummary struct {
	ID            int64     `json:"id"`
	Nombre        string    `json:"nombre"`
	Ticker        string    `json:"ticker,omitempty"`
	FechaCreacion time.Time `json:"fecha_creacion"`
}

// RowIDInversion identifica la fila sintética de la inversión.
const RowIDInversion = "inversion"

// Row es una línea de la tabla de amortización. Los campos puntero quedan en
// nil mientras no se pueden calcular.
type Row struct {
	ID           string
	CouponNumber int

	PaymentDate    time.Time
	AccrualStart   time.Time
	AccrualEnd     time.Time
	SettlementDate time.Time
	IntervalStart  time.Time
	IntervalEnd    time.Time

	IndexValueStart *float64
	IndexValueEnd   *float64

	// Valores cargados a mano; tienen prioridad sobre los derivados.
	ManualAmortizationPct *float64
	ManualNominalRate     *float64

	DayCountFactor          *float64
	AmortizationPct         *float64
	ResidualBalancePct      *float64
	IndexCoefficient        *float64
	AdjustedAmortizationPct *float64
	NominalRate             *float64
	NominalIncomePct        *float64
	AdjustedIncomePct       *float64
	DiscountFactor          *float64
	ActualizedPayment       *float64
	CashFlow                *float64
	DiscountedCashFlow      *float64
}

// IsInvestment reporta si la fila es la inversión inicial.
func (r *Row) IsInvestment() bool { return r.ID == RowIDInversion }

// Float devuelve un puntero a v.
func Float(v float64) *float64 { return &v }

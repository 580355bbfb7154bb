// Package irr resuelve la TIR de una serie de flujos fechados: búsqueda por
// pasos con reducción del paso en cada cambio de signo y bisección final.
package irr

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/jmtruffa/cupones/internal/daycount"
)

const (
	// MaxIterations es el tope de la búsqueda por pasos.
	MaxIterations = 1000
	// MaxBisections es el tope de la bisección.
	MaxBisections = 300
	// InitialStep es el paso inicial (1%).
	InitialStep = 0.01
	// BisectionStep: por debajo de este paso se pasa a bisección.
	BisectionStep = 1e-4
	// MinRate y MaxRate acotan la tasa.
	MinRate = -0.99
	MaxRate = 10.0

	bracketTolerance = 1e-18
)

// Flow es un flujo de fondos en una fecha.
type Flow struct {
	Date   time.Time
	Amount float64
}

// Result es la TIR encontrada. Converged es falso cuando se agotaron las
// iteraciones; Rate es entonces la última tasa evaluada.
type Result struct {
	Rate       float64
	Iterations int
	Converged  bool
}

// NPV descuenta cada flujo a la fecha de valuación:
// sum(cf / (1+rate)^fracción). Fracciones <= 0 no se descuentan.
func NPV(rate float64, flows []Flow, valuation time.Time, convention int) float64 {
	npv := 0.0
	for _, f := range flows {
		yf, _ := daycount.YearFraction(valuation, f.Date, convention)
		if yf > 0 {
			npv += f.Amount / math.Pow(1+rate, yf)
		} else {
			npv += f.Amount
		}
	}
	return npv
}

// Solve busca la tasa que anula el NPV. Los flujos se ordenan por fecha; los
// flujos sin calcular deben excluirse antes.
func Solve(flows []Flow, valuation time.Time, convention int) Result {
	flows = sorted(flows)
	npv := func(r float64) float64 { return NPV(r, flows, valuation, convention) }

	scale := 0.0
	for _, f := range flows {
		scale += math.Abs(f.Amount)
	}
	tolerance := math.Max(1e-12, scale*1e-15)

	rate := 0.0
	step := InitialStep
	value := npv(rate)
	if math.Abs(value) < tolerance {
		return Result{Rate: rate, Converged: true}
	}

	direction := 1.0
	if value < 0 {
		direction = -1
	}
	lastValue, lastRate := value, rate
	flipped := false

	for i := 1; i <= MaxIterations; i++ {
		rate = clamp(rate+direction*step, MinRate, MaxRate)
		value = npv(rate)
		if math.Abs(value) < tolerance {
			return Result{Rate: rate, Iterations: i, Converged: true}
		}

		if lastValue*value < 0 {
			flipped = true
			step /= 2
			direction = -direction
			if step < BisectionStep {
				r, n := bisect(npv, lastRate, rate, math.Max(1e-13, scale*1e-15))
				return Result{Rate: r, Iterations: i + n, Converged: true}
			}
		} else if flipped {
			step /= 2
		}
		lastValue, lastRate = value, rate
	}
	return Result{Rate: rate, Iterations: MaxIterations}
}

// bisect achica el intervalo [a, b], que contiene un cambio de signo, hasta
// que el NPV del punto medio quede bajo la tolerancia o el intervalo se
// agote. Devuelve el punto medio final.
func bisect(npv func(float64) float64, a, b, tolerance float64) (float64, int) {
	lo, hi := math.Min(a, b), math.Max(a, b)
	loPositive := npv(lo) > 0
	for j := 1; j <= MaxBisections; j++ {
		mid := (lo + hi) / 2
		v := npv(mid)
		if math.Abs(v) < tolerance {
			return mid, j
		}
		if (v > 0) == loPositive {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < bracketTolerance {
			return (lo + hi) / 2, j
		}
	}
	return (lo + hi) / 2, MaxBisections
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sorted(flows []Flow) []Flow {
	out := make([]Flow, len(flows))
	copy(out, flows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SolveSeries es Solve sobre listas paralelas de montos y fechas, como XIRR.
// Es un error que las listas no tengan el mismo largo o que los flujos no
// cambien de signo.
func SolveSeries(values []float64, dates []time.Time, valuation time.Time, convention int) (Result, error) {
	if len(values) != len(dates) {
		return Result{}, errors.New("values and dates must have the same length")
	}
	lo, hi := minMaxSlice(values)
	if lo*hi >= 0 {
		return Result{}, errors.New("the cash flow must contain at least one positive value and one negative value")
	}
	flows := make([]Flow, len(values))
	for i := range values {
		flows[i] = Flow{Date: dates[i], Amount: values[i]}
	}
	return Solve(flows, valuation, convention), nil
}

func minMaxSlice(values []float64) (float64, float64) {
	lo := math.MaxFloat64
	hi := -lo
	for _, v := range values {
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return lo, hi
}

// Package daycount calcula fracciones de año según la base de interés.
package daycount

import (
	"time"

	"github.com/jmtruffa/cupones/internal/fecha"
)

// Convenciones de conteo de días (tipoInteresDias).
const (
	Thirty360    = 0 // US (NASD) 30/360
	ActualActual = 1 // Real/real
	Actual360    = 2 // Real/360
	Actual365    = 3 // Real/365
)

// Name devuelve la denominación de la convención.
func Name(convention int) string {
	switch convention {
	case Thirty360:
		return "30/360"
	case ActualActual:
		return "Actual/Actual"
	case Actual360:
		return "Actual/360"
	case Actual365:
		return "Actual/365"
	}
	return ""
}

// Valid reporta si la convención es conocida.
func Valid(convention int) bool { return Name(convention) != "" }

// Factor es el day count factor de un período de devengamiento. El fin usado
// internamente es accrualEnd + 1 día, para incluir el último día devengado.
// Puede ser negativo si accrualEnd < accrualStart.
func Factor(accrualStart, accrualEnd time.Time, convention int) (float64, bool) {
	if accrualStart.IsZero() || accrualEnd.IsZero() {
		return 0, false
	}
	return calculateDays(convention, fecha.Truncate(accrualStart), fecha.Truncate(accrualEnd).AddDate(0, 0, 1))
}

// YearFraction es la fracción de año entre dos fechas, sin el día adicional
// de Factor. Se usa para descontar flujos.
func YearFraction(start, end time.Time, convention int) (float64, bool) {
	if start.IsZero() || end.IsZero() {
		return 0, false
	}
	return calculateDays(convention, fecha.Truncate(start), fecha.Truncate(end))
}

func calculateDays(convention int, startDate, endDate time.Time) (float64, bool) {
	switch convention {
	case Thirty360:
		return thirty360(startDate, endDate), true
	case ActualActual:
		return actualActual(startDate, endDate), true
	case Actual360:
		return actualDays(startDate, endDate) / 360.0, true
	case Actual365:
		return actualDays(startDate, endDate) / 365.0, true
	default:
		return 0, false
	}
}

func actualDays(startDate, endDate time.Time) float64 {
	return endDate.Sub(startDate).Hours() / 24
}

// actualActual: días reales / días del año; si el período cruza años se
// suma cada tramo calendario con la longitud de su año.
func actualActual(startDate, endDate time.Time) float64 {
	if endDate.Before(startDate) {
		return -actualActual(endDate, startDate)
	}
	if startDate.Year() == endDate.Year() {
		return actualDays(startDate, endDate) / daysInYear(startDate.Year())
	}
	total := 0.0
	current := startDate
	for current.Before(endDate) {
		year := current.Year()
		yearEnd := fecha.Date(year+1, time.January, 1)
		periodEnd := yearEnd
		if yearEnd.After(endDate) {
			periodEnd = endDate
		}
		total += actualDays(current, periodEnd) / daysInYear(year)
		current = yearEnd
	}
	return total
}

// thirty360: US (NASD).
// Si D1 = 31, D1 = 30.
// Si D2 = 31 y D1 es 30 o 31, D2 = 30.
func thirty360(startDate, endDate time.Time) float64 {
	y1, m1, d1 := startDate.Date()
	y2, m2, d2 := endDate.Date()

	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}

	days := 360*(y2-y1) + 30*(int(m2)-int(m1)) + (d2 - d1)
	return float64(days) / 360.0
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInYear(year int) float64 {
	if isLeap(year) {
		return 366
	}
	return 365
}

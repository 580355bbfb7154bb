// Package numfmt interpreta números ingresados con coma decimal y los formatea
// con una cantidad fija de decimales.
package numfmt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultDecimals = 4
	MaxDecimals     = 12
)

// Parse acepta "1.234,56", "1234,56" y "1234.56". Si hay coma se toma como
// separador decimal y los puntos se descartan como separadores de miles.
// Sin coma, los puntos que agrupan de a tres dígitos ("1.000",
// "1.000.000") son separadores de miles; cualquier otro punto es decimal.
func Parse(s string) (float64, bool) {
	d, ok := ParseDecimal(s)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// thousands reconoce enteros agrupados con punto, sin parte decimal.
var thousands = regexp.MustCompile(`^[-+]?[1-9]\d{0,2}(\.\d{3})+$`)

// ParseDecimal es Parse sin pérdida de precisión.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case thousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParsePtr devuelve nil para entradas vacías o inválidas.
func ParsePtr(s string) *float64 {
	f, ok := Parse(s)
	if !ok {
		return nil
	}
	return &f
}

// ClampDecimals limita la cantidad de decimales a [0, MaxDecimals]; negativos
// toman el valor por defecto.
func ClampDecimals(places int) int {
	switch {
	case places < 0:
		return DefaultDecimals
	case places > MaxDecimals:
		return MaxDecimals
	}
	return places
}

// Format redondea v a places decimales (punto como separador).
func Format(v float64, places int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(ClampDecimals(places)))
}

// FormatPtr devuelve "" para valores no calculados.
func FormatPtr(v *float64, places int) string {
	if v == nil {
		return ""
	}
	return Format(*v, places)
}

// FormatLocal usa coma decimal, como se muestra en pantalla.
func FormatLocal(v float64, places int) string {
	return strings.Replace(Format(v, places), ".", ",", 1)
}

// Percent formatea una tasa (0.1 -> "10.0000%").
func Percent(rate float64, places int) string {
	return decimal.NewFromFloat(rate).Shift(2).StringFixed(int32(ClampDecimals(places))) + "%"
}

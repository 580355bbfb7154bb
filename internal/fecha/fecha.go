// Package fecha agrupa el manejo de fechas calendario: formatos de entrada
// (DD/MM/YYYY, DD/MM, YYYY-MM-DD), serialización JSON y aritmética de meses.
package fecha

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateFormat es el formato de transporte y almacenamiento.
	DateFormat = "2006-01-02"
	// DisplayFormat es el formato de pantalla e ingreso de usuario.
	DisplayFormat = "02/01/2006"
	// DayMonthFormat es el formato de la fecha de primera renta.
	DayMonthFormat = "02/01"
)

// Fecha es una fecha sin hora que se serializa como "YYYY-MM-DD".
type Fecha time.Time

func (f Fecha) Time() time.Time { return time.Time(f) }

func (f Fecha) String() string {
	if time.Time(f).IsZero() {
		return ""
	}
	return time.Time(f).Format(DateFormat)
}

func (f Fecha) MarshalJSON() ([]byte, error) {
	if time.Time(f).IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + f.String() + `"`), nil
}

func (f *Fecha) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = Fecha{}
		return nil
	}
	t, ok := Parse(s)
	if !ok {
		return fmt.Errorf("fecha inválida: %q", s)
	}
	*f = Fecha(t)
	return nil
}

// Date construye una fecha a medianoche UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate descarta la hora y la zona, conservando el día calendario.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Parse acepta DD/MM/YYYY, YYYY-MM-DD y timestamps RFC3339 (se toma la fecha).
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DisplayFormat, DateFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Truncate(t), true
	}
	return time.Time{}, false
}

// MustParse es para fixtures y constantes conocidas.
func MustParse(s string) time.Time {
	t, ok := Parse(s)
	if !ok {
		panic("fecha: formato inválido " + s)
	}
	return t
}

// ParseDayMonth valida el formato exacto "DD/MM" de la primera renta.
func ParseDayMonth(s string) (day int, month time.Month, ok bool) {
	t, err := time.Parse(DayMonthFormat, strings.TrimSpace(s))
	if err != nil {
		return 0, 0, false
	}
	return t.Day(), t.Month(), true
}

// InYear ubica un día/mes en un año dado. Un 29/02 en año no bisiesto cae
// en el último día de febrero.
func InYear(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

// DaysIn devuelve la cantidad de días del mes.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// AddMonths suma meses con la semántica de EDATE: el día se conserva y, si
// no existe en el mes destino, se recorta al último día.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ny := y + total/12
	nm := total % 12
	if nm < 0 {
		nm += 12
		ny--
	}
	return InYear(ny, time.Month(nm+1), d)
}

// AddDays suma días corridos.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// Format devuelve "YYYY-MM-DD" o vacío para la fecha cero.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}

// Display devuelve "DD/MM/YYYY" o vacío para la fecha cero.
func Display(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayFormat)
}

// ToDisplay convierte "YYYY-MM-DD" a "DD/MM/YYYY"; devuelve s sin cambios si
// no se puede interpretar.
func ToDisplay(s string) string {
	if t, ok := Parse(s); ok {
		return Display(t)
	}
	return s
}

// ToWire convierte "DD/MM/YYYY" a "YYYY-MM-DD"; vacío si no es una fecha.
func ToWire(s string) string {
	if t, ok := Parse(s); ok {
		return Format(t)
	}
	return ""
}

// Min y Max ignoran fechas cero.
func Min(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if out.IsZero() || t.Before(out) {
			out = t
		}
	}
	return out
}

func Max(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}

// Package rates consulta series de referencia (CER, BADLAR, TAMAR) ya
// cargadas en memoria: valor puntual con arrastre del último dato previo,
// promedio en ventana y promedio de las últimas N tasas hábiles.
package rates

import (
	"sort"
	"time"

	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

type point struct {
	date  time.Time
	value float64
}

// Series es una serie ordenada por fecha, sin duplicados.
type Series struct {
	points []point
}

// NewSeries ordena las observaciones; ante fechas repetidas gana la última.
func NewSeries(obs []model.Observation) *Series {
	byDate := make(map[time.Time]float64, len(obs))
	for _, o := range obs {
		t := o.Fecha.Time()
		if t.IsZero() {
			continue
		}
		byDate[fecha.Truncate(t)] = o.Valor
	}
	s := &Series{points: make([]point, 0, len(byDate))}
	for t, v := range byDate {
		s.points = append(s.points, point{date: t, value: v})
	}
	sort.Slice(s.points, func(i, j int) bool { return s.points[i].date.Before(s.points[j].date) })
	return s
}

// Len devuelve la cantidad de observaciones.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Bounds devuelve la primera y última fecha de la serie.
func (s *Series) Bounds() (first, last time.Time, ok bool) {
	if s.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.points[0].date, s.points[len(s.points)-1].date, true
}

// Observations devuelve la serie como registros, en orden.
func (s *Series) Observations() []model.Observation {
	out := make([]model.Observation, 0, s.Len())
	if s == nil {
		return out
	}
	for _, p := range s.points {
		out = append(out, model.Observation{Fecha: fecha.Fecha(p.date), Valor: p.value})
	}
	return out
}

// search devuelve el índice de la primera observación con fecha > d.
func (s *Series) search(d time.Time) int {
	return sort.Search(len(s.points), func(i int) bool { return s.points[i].date.After(d) })
}

// Exact busca el valor de la fecha exacta.
func (s *Series) Exact(d time.Time) (float64, bool) {
	if s.Len() == 0 || d.IsZero() {
		return 0, false
	}
	d = fecha.Truncate(d)
	i := s.search(d)
	if i > 0 && s.points[i-1].date.Equal(d) {
		return s.points[i-1].value, true
	}
	return 0, false
}

// Point devuelve el valor de d o, si falta, el de la última fecha anterior.
// Sin observaciones <= d no hay valor.
func (s *Series) Point(d time.Time) (float64, bool) {
	if s.Len() == 0 || d.IsZero() {
		return 0, false
	}
	i := s.search(fecha.Truncate(d))
	if i == 0 {
		return 0, false
	}
	return s.points[i-1].value, true
}

// PointPtr es Point con nil como "no disponible".
func (s *Series) PointPtr(d time.Time) *float64 {
	v, ok := s.Point(d)
	if !ok {
		return nil
	}
	return &v
}

// WindowAverage es la media de las observaciones con from <= fecha <= to.
func (s *Series) WindowAverage(from, to time.Time) (float64, bool) {
	if s.Len() == 0 || from.IsZero() || to.IsZero() {
		return 0, false
	}
	from, to = fecha.Truncate(from), fecha.Truncate(to)
	lo := sort.Search(len(s.points), func(i int) bool { return !s.points[i].date.Before(from) })
	hi := s.search(to)
	if lo >= hi {
		return 0, false
	}
	sum := 0.0
	for _, p := range s.points[lo:hi] {
		sum += p.value
	}
	return sum / float64(hi-lo), true
}

// NTasasOptions ajusta NTasas para el cupón vigente.
type NTasasOptions struct {
	// Vigente acepta resultados parciales y saltea fechas posteriores a Cutoff.
	Vigente bool
	Cutoff  time.Time
}

// NTasas recorre count días hábiles hacia atrás desde base (base es el paso
// 0) y promedia los valores exactos de esas fechas. Fuera del cupón vigente
// se exigen los count valores.
func (s *Series) NTasas(base time.Time, count int, cal *calendar.Calendar, opts NTasasOptions) (avg float64, n int, ok bool) {
	if s.Len() == 0 || base.IsZero() || count <= 0 {
		return 0, 0, false
	}
	sum := 0.0
	d := fecha.Truncate(base)
	for step := 0; step < count; step++ {
		if step > 0 {
			d = cal.AddBusinessDays(d, -1)
		}
		if opts.Vigente && !opts.Cutoff.IsZero() && d.After(opts.Cutoff) {
			continue
		}
		v, found := s.Exact(d)
		if !found {
			if !opts.Vigente {
				return 0, 0, false
			}
			continue
		}
		sum += v
		n++
	}
	if n == 0 || (!opts.Vigente && n < count) {
		return 0, n, false
	}
	return sum / float64(n), n, true
}

package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

var d = fecha.MustParse

func obs(pairs ...any) []model.Observation {
	out := make([]model.Observation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Observation{
			Fecha: fecha.Fecha(d(pairs[i].(string))),
			Valor: pairs[i+1].(float64),
		})
	}
	return out
}

func TestPointLookup(t *testing.T) {
	s := NewSeries(obs("2024-01-10", 12.0, "2024-01-01", 10.0))

	v, ok := s.Point(d("2024-01-05"))
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = s.Point(d("2024-01-10"))
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	v, ok = s.Point(d("2024-03-01"))
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	_, ok = s.Point(d("2023-12-31"))
	assert.False(t, ok)
	assert.Nil(t, s.PointPtr(d("2023-12-31")))

	var empty *Series
	_, ok = empty.Point(d("2024-01-05"))
	assert.False(t, ok)
}

func TestDuplicatesLastWins(t *testing.T) {
	s := NewSeries(obs("2024-01-01", 10.0, "2024-01-01", 11.0))
	assert.Equal(t, 1, s.Len())
	v, _ := s.Exact(d("2024-01-01"))
	assert.Equal(t, 11.0, v)
}

func TestWindowAverage(t *testing.T) {
	s := NewSeries(obs("2024-01-01", 10.0, "2024-01-02", 20.0, "2024-01-03", 30.0, "2024-01-10", 40.0))

	v, ok := s.WindowAverage(d("2024-01-02"), d("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 25.0, v)

	v, ok = s.WindowAverage(d("2023-12-01"), d("2024-12-01"))
	require.True(t, ok)
	assert.Equal(t, 25.0, v)

	_, ok = s.WindowAverage(d("2024-01-04"), d("2024-01-09"))
	assert.False(t, ok)

	_, ok = s.WindowAverage(d("2024-01-03"), d("2024-01-02"))
	assert.False(t, ok)
}

func TestNTasas(t *testing.T) {
	cal := calendar.New(d("2024-01-01"))
	// viernes 5, jueves 4, miércoles 3, martes 2 (lunes 1 es feriado)
	s := NewSeries(obs(
		"2024-01-02", 100.0,
		"2024-01-03", 110.0,
		"2024-01-04", 120.0,
		"2024-01-05", 130.0,
	))

	avg, n, ok := s.NTasas(d("2024-01-05"), 3, cal, NTasasOptions{})
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, 120.0, avg)

	avg, n, ok = s.NTasas(d("2024-01-05"), 4, cal, NTasasOptions{})
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, 115.0, avg)

	// falta un valor: fuera del vigente falla
	_, _, ok = s.NTasas(d("2024-01-08"), 3, cal, NTasasOptions{})
	assert.False(t, ok)

	// vigente: saltea lo posterior al corte y acepta parciales
	avg, n, ok = s.NTasas(d("2024-01-08"), 3, cal, NTasasOptions{Vigente: true, Cutoff: d("2024-01-04")})
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, 120.0, avg)

	_, _, ok = s.NTasas(d("2024-01-08"), 1, cal, NTasasOptions{Vigente: true, Cutoff: d("2024-01-04")})
	assert.False(t, ok)
}

func TestBoundsAndObservations(t *testing.T) {
	s := NewSeries(obs("2024-02-01", 2.0, "2024-01-01", 1.0))
	first, last, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, d("2024-01-01"), first)
	assert.Equal(t, d("2024-02-01"), last)
	got := s.Observations()
	require.Len(t, got, 2)
	assert.Equal(t, time.January, got[0].Fecha.Time().Month())
}

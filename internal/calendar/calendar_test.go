package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

func d(s string) time.Time { return fecha.MustParse(s) }

func argentina2024() *Calendar {
	return FromRecords([]model.Holiday{
		{Fecha: fecha.Fecha(d("2024-01-01")), Nombre: "Año nuevo", Tipo: "inamovible"},
		{Fecha: fecha.Fecha(d("2024-02-12")), Nombre: "Carnaval", Tipo: "inamovible"},
		{Fecha: fecha.Fecha(d("2024-02-13")), Nombre: "Carnaval", Tipo: "inamovible"},
		{Fecha: fecha.Fecha(d("2024-03-28")), Nombre: "Jueves santo", Tipo: "inamovible"},
		{Fecha: fecha.Fecha(d("2024-03-29")), Nombre: "Viernes santo", Tipo: "inamovible"},
		{Fecha: fecha.Fecha(d("2024-07-09")), Nombre: "Independencia", Tipo: "inamovible"},
	})
}

func TestIsBusinessDay(t *testing.T) {
	c := argentina2024()
	assert.Equal(t, 6, c.Len())
	assert.False(t, c.IsBusinessDay(d("2024-01-01")), "feriado")
	assert.True(t, c.IsBusinessDay(d("2024-01-02")))
	assert.False(t, c.IsBusinessDay(d("2024-01-06")), "sábado")
	assert.False(t, c.IsBusinessDay(d("2024-01-07")), "domingo")
	// el feriado es de un único año
	assert.True(t, c.IsBusinessDay(d("2025-07-09")))
	assert.True(t, c.IsHoliday(d("2024-07-09")))
}

func TestNilCalendarOnlyWeekends(t *testing.T) {
	var c *Calendar
	assert.True(t, c.IsBusinessDay(d("2024-01-01")))
	assert.False(t, c.IsBusinessDay(d("2024-01-06")))
	assert.Equal(t, d("2024-01-08"), c.NextBusinessDay(d("2024-01-06")))
}

func TestNextBusinessDay(t *testing.T) {
	c := argentina2024()
	assert.Equal(t, d("2024-02-14"), c.NextBusinessDay(d("2024-02-10")))
	assert.Equal(t, d("2024-04-01"), c.NextBusinessDay(d("2024-03-28")))
	assert.Equal(t, d("2024-01-02"), c.NextBusinessDay(d("2024-01-02")))
}

func TestAddBusinessDays(t *testing.T) {
	c := argentina2024()
	cases := []struct {
		from string
		n    int
		want string
	}{
		{"2024-02-09", 1, "2024-02-14"},
		{"2024-02-14", -1, "2024-02-09"},
		{"2024-03-27", 2, "2024-04-02"},
		{"2024-07-08", 1, "2024-07-10"},
		{"2024-01-05", -3, "2024-01-02"},
		{"2024-01-06", 0, "2024-01-06"},
	}
	for _, tc := range cases {
		t.Run(tc.from, func(t *testing.T) {
			assert.Equal(t, d(tc.want), c.AddBusinessDays(d(tc.from), tc.n))
		})
	}
}

func TestAddBusinessDaysRoundTrip(t *testing.T) {
	c := argentina2024()
	start := d("2024-01-01")
	for i := 0; i < 120; i++ {
		day := start.AddDate(0, 0, i)
		assert.Equal(t, day, c.AddBusinessDays(day, 0), "n=0 no ajusta")
		for _, n := range []int{1, 3, 10, -2, -7} {
			back := c.AddBusinessDays(c.AddBusinessDays(day, n), -n)
			assert.True(t, c.IsBusinessDay(back), "%s n=%d", fecha.Format(day), n)
			if c.IsBusinessDay(day) {
				assert.Equal(t, day, back, "%s n=%d", fecha.Format(day), n)
			}
		}
	}
}

// Package calendar implementa la aritmética de días hábiles sobre un
// calendario de feriados precargado. Nunca consulta fuentes externas: el
// llamador carga los feriados del rango que va a recorrer.
package calendar

import (
	"time"

	"github.com/rickar/cal/v2"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

// Calendar es un calendario hábil lunes a viernes más feriados puntuales.
// Un *Calendar nil sólo excluye fines de semana.
type Calendar struct {
	bc    *cal.BusinessCalendar
	dates map[string]struct{}
}

// New arma un calendario con los feriados dados.
func New(holidays ...time.Time) *Calendar {
	c := &Calendar{
		bc:    cal.NewBusinessCalendar(),
		dates: make(map[string]struct{}, len(holidays)),
	}
	for _, d := range holidays {
		c.Add(d, "Feriado")
	}
	return c
}

// FromRecords arma un calendario a partir de registros de feriados.
func FromRecords(recs []model.Holiday) *Calendar {
	c := New()
	for _, h := range recs {
		name := h.Nombre
		if name == "" {
			name = "Feriado"
		}
		c.Add(h.Fecha.Time(), name)
	}
	return c
}

// Add registra un feriado de fecha fija para un único año.
func (c *Calendar) Add(d time.Time, name string) {
	key := fecha.Format(d)
	if _, ok := c.dates[key]; ok {
		return
	}
	c.dates[key] = struct{}{}
	y, m, day := d.Date()
	c.bc.AddHoliday(&cal.Holiday{
		Name:      name,
		Type:      cal.ObservancePublic,
		StartYear: y,
		EndYear:   y,
		Month:     m,
		Day:       day,
		Func:      cal.CalcDayOfMonth,
	})
}

// Len devuelve la cantidad de feriados cargados.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.dates)
}

// IsHoliday reporta si d es un feriado cargado.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.dates[fecha.Format(d)]
	return ok
}

// IsBusinessDay es falso en sábados, domingos y feriados.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	if c == nil {
		wd := d.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.bc.IsWorkday(d)
}

// NextBusinessDay devuelve d si es hábil; si no, el próximo día hábil.
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AddBusinessDays avanza (o retrocede, si n < 0) n días hábiles. Con n == 0
// devuelve d sin ajustar, aunque no sea hábil.
func (c *Calendar) AddBusinessDays(d time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if c.IsBusinessDay(d) {
			n--
		}
	}
	return d
}

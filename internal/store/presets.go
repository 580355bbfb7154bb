package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

// nullable convierte "" en NULL.
func nullable(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// nullableDate acepta DD/MM/YYYY o YYYY-MM-DD; lo ilegible queda en NULL.
func nullableDate(s string) any {
	if w := fecha.ToWire(strings.TrimSpace(s)); w != "" {
		return w
	}
	return nil
}

// InsertPreset guarda una calculadora y devuelve su resumen.
func (s *Store) InsertPreset(ctx context.Context, p model.Preset) (model.PresetSummary, error) {
	name := strings.TrimSpace(p.Nombre)
	if name == "" {
		return model.PresetSummary{}, fmt.Errorf("el nombre de la calculadora es requerido")
	}
	offset := p.DiasRestarFechaFinDev
	if strings.TrimSpace(offset) == "" {
		offset = "-1"
	}
	var out model.PresetSummary
	var ticker sql.NullString
	var creacion any
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO calculadoras (
			nombre, fecha_compra, precio_compra, cantidad_partida,
			ticker, tasa, formula, renta_tna, spread, tipo_interes_dias,
			fecha_emision, fecha_primera_renta, dias_restar_fecha_fin_dev,
			fecha_amortizacion, porcentaje_amortizacion, periodicidad,
			intervalo_inicio, intervalo_fin, ajuste_cer
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, nombre, ticker, fecha_creacion`,
		name,
		nullableDate(p.FechaCompra),
		nullable(p.PrecioCompra),
		nullable(p.CantidadPartida),
		nullable(p.Ticker),
		nullable(p.Tasa),
		nullable(p.Formula),
		nullable(p.RentaTNA),
		nullable(p.Spread),
		nullable(p.TipoInteresDias),
		nullableDate(p.FechaEmision),
		nullable(p.FechaPrimeraRenta),
		offset,
		nullableDate(p.FechaAmortizacion),
		nullable(p.PorcentajeAmortizacion),
		nullable(p.Periodicidad),
		nullable(p.IntervaloInicio),
		nullable(p.IntervaloFin),
		p.AjusteCER,
	).Scan(&out.ID, &out.Nombre, &ticker, &creacion)
	if err != nil {
		return model.PresetSummary{}, fmt.Errorf("insert calculadora: %w", err)
	}
	out.Ticker = ticker.String
	out.FechaCreacion = scanTime(creacion)
	return out, nil
}

// ListPresets devuelve las calculadoras guardadas, más nuevas primero.
func (s *Store) ListPresets(ctx context.Context) ([]model.PresetSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nombre, ticker, fecha_creacion FROM calculadoras ORDER BY fecha_creacion DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query calculadoras: %w", err)
	}
	defer rows.Close()

	out := []model.PresetSummary{}
	for rows.Next() {
		var p model.PresetSummary
		var ticker sql.NullString
		var creacion any
		if err := rows.Scan(&p.ID, &p.Nombre, &ticker, &creacion); err != nil {
			return nil, fmt.Errorf("scan calculadora: %w", err)
		}
		p.Ticker = ticker.String
		p.FechaCreacion = scanTime(creacion)
		out = append(out, p)
	}
	return out, rows.Err()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// scanTime acepta TIMESTAMP como time.Time o texto.
func scanTime(raw any) time.Time {
	var s string
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// displayDate devuelve DD/MM/YYYY para un DATE leído de la base.
func displayDate(raw any) string {
	if raw == nil {
		return ""
	}
	d, err := scanDate(raw)
	if err != nil {
		return ""
	}
	return fecha.Display(d.Time())
}

// GetPreset trae una calculadora con las fechas en DD/MM/YYYY.
func (s *Store) GetPreset(ctx context.Context, id int64) (model.Preset, error) {
	var (
		p                              model.Preset
		compra, emision, amortizacion  any
		precio, cantidad, ticker, tasa sql.NullString
		formula, tna, spread, tipo     sql.NullString
		primera, restar, porcentaje    sql.NullString
		periodicidad, inicio, fin      sql.NullString
		creacion                       any
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, fecha_compra, precio_compra, cantidad_partida,
			ticker, tasa, formula, renta_tna, spread, tipo_interes_dias,
			fecha_emision, fecha_primera_renta, dias_restar_fecha_fin_dev,
			fecha_amortizacion, porcentaje_amortizacion, periodicidad,
			intervalo_inicio, intervalo_fin, ajuste_cer, fecha_creacion
		FROM calculadoras WHERE id = $1`, id).Scan(
		&p.ID, &p.Nombre, &compra, &precio, &cantidad,
		&ticker, &tasa, &formula, &tna, &spread, &tipo,
		&emision, &primera, &restar,
		&amortizacion, &porcentaje, &periodicidad,
		&inicio, &fin, &p.AjusteCER, &creacion)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Preset{}, fmt.Errorf("calculadora %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Preset{}, fmt.Errorf("query calculadora %d: %w", id, err)
	}
	p.FechaCompra = displayDate(compra)
	p.FechaEmision = displayDate(emision)
	p.FechaAmortizacion = displayDate(amortizacion)
	p.PrecioCompra = precio.String
	p.CantidadPartida = cantidad.String
	p.Ticker = ticker.String
	p.Tasa = tasa.String
	p.Formula = formula.String
	p.RentaTNA = tna.String
	p.Spread = spread.String
	p.TipoInteresDias = tipo.String
	p.FechaPrimeraRenta = primera.String
	p.DiasRestarFechaFinDev = restar.String
	p.PorcentajeAmortizacion = porcentaje.String
	p.Periodicidad = periodicidad.String
	p.IntervaloInicio = inicio.String
	p.IntervaloFin = fin.String
	p.FechaCreacion = scanTime(creacion)
	return p, nil
}

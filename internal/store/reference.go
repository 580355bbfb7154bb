package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

var seriesTables = map[model.Series]string{
	model.SeriesCER:    "cer",
	model.SeriesBADLAR: "badlar",
	model.SeriesTAMAR:  "tamar",
}

func seriesTable(s model.Series) (string, error) {
	t, ok := seriesTables[s]
	if !ok {
		return "", fmt.Errorf("serie desconocida: %q", s)
	}
	return t, nil
}

// Query filtra y pagina una consulta por fecha. Sin rango se devuelve toda
// la tabla; con paginación y sin rango, las fechas más nuevas primero.
type Query struct {
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

func (q Query) paged() bool { return q.Page > 0 && q.PerPage > 0 }

func (q Query) ranged() bool { return !q.From.IsZero() && !q.To.IsZero() }

// Page es el resultado de una consulta. Total y TotalPages sólo se
// completan con paginación.
type Page[T any] struct {
	Items      []T
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// selectPaged arma la consulta y el conteo sobre table.
func (s *Store) selectPaged(ctx context.Context, table, cols string, q Query, scan func(*sql.Rows) error) (total int, err error) {
	where, args := "", []any{}
	order := "ASC"
	if q.ranged() {
		where = " WHERE fecha >= $1 AND fecha <= $2"
		args = append(args, fecha.Format(q.From), fecha.Format(q.To))
	} else if q.paged() {
		order = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY fecha %s", cols, table, where, order)
	if q.paged() {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&total); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		n := len(args)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
		args = append(args, q.PerPage, (q.Page-1)*q.PerPage)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, fmt.Errorf("scan %s: %w", table, err)
		}
	}
	return total, rows.Err()
}

func newPage[T any](items []T, q Query, total int) Page[T] {
	p := Page[T]{Items: items}
	if q.paged() {
		p.Page, p.PerPage, p.Total = q.Page, q.PerPage, total
		p.TotalPages = (total + q.PerPage - 1) / q.PerPage
	}
	return p
}

// scanDate acepta DATE como time.Time (lib/pq) o texto (sqlite).
func scanDate(raw any) (fecha.Fecha, error) {
	switch v := raw.(type) {
	case time.Time:
		return fecha.Fecha(fecha.Truncate(v)), nil
	case string:
		if t, ok := fecha.Parse(v); ok {
			return fecha.Fecha(t), nil
		}
	case []byte:
		if t, ok := fecha.Parse(string(v)); ok {
			return fecha.Fecha(t), nil
		}
	}
	return fecha.Fecha{}, fmt.Errorf("fecha inválida: %v", raw)
}

// QueryHolidays lista feriados.
func (s *Store) QueryHolidays(ctx context.Context, q Query) (Page[model.Holiday], error) {
	var out []model.Holiday
	total, err := s.selectPaged(ctx, "feriados", "fecha, nombre, tipo", q, func(rows *sql.Rows) error {
		var raw any
		var h model.Holiday
		if err := rows.Scan(&raw, &h.Nombre, &h.Tipo); err != nil {
			return err
		}
		d, err := scanDate(raw)
		if err != nil {
			return err
		}
		h.Fecha = d
		out = append(out, h)
		return nil
	})
	if err != nil {
		return Page[model.Holiday]{}, err
	}
	return newPage(out, q, total), nil
}

// QuerySeries lista observaciones de una serie.
func (s *Store) QuerySeries(ctx context.Context, series model.Series, q Query) (Page[model.Observation], error) {
	table, err := seriesTable(series)
	if err != nil {
		return Page[model.Observation]{}, err
	}
	var out []model.Observation
	total, err := s.selectPaged(ctx, table, "fecha, valor", q, func(rows *sql.Rows) error {
		var raw any
		var o model.Observation
		if err := rows.Scan(&raw, &o.Valor); err != nil {
			return err
		}
		d, err := scanDate(raw)
		if err != nil {
			return err
		}
		o.Fecha = d
		out = append(out, o)
		return nil
	})
	if err != nil {
		return Page[model.Observation]{}, err
	}
	return newPage(out, q, total), nil
}

// Holidays devuelve los feriados de [from, to].
func (s *Store) Holidays(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	p, err := s.QueryHolidays(ctx, Query{From: from, To: to})
	return p.Items, err
}

// Series devuelve las observaciones de [from, to].
func (s *Store) Series(ctx context.Context, series model.Series, from, to time.Time) ([]model.Observation, error) {
	p, err := s.QuerySeries(ctx, series, Query{From: from, To: to})
	return p.Items, err
}

// dedupe deja la última aparición de cada clave, en el orden original.
func dedupe[T any](items []T, key func(T) string) []T {
	last := make(map[string]int, len(items))
	for i, it := range items {
		last[key(it)] = i
	}
	out := make([]T, 0, len(last))
	for i, it := range items {
		if last[key(it)] == i {
			out = append(out, it)
		}
	}
	return out
}

// UpsertHolidays inserta o actualiza feriados por fecha en lotes de
// BatchSize. Devuelve la cantidad de filas enviadas.
func (s *Store) UpsertHolidays(ctx context.Context, hs []model.Holiday) (int, error) {
	hs = dedupe(hs, func(h model.Holiday) string { return h.Fecha.String() })
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(hs); start += BatchSize {
			batch := hs[start:min(start+BatchSize, len(hs))]
			args := make([]any, 0, len(batch)*3)
			for _, h := range batch {
				if h.Fecha.Time().IsZero() {
					return fmt.Errorf("feriado sin fecha")
				}
				args = append(args, fecha.Format(h.Fecha.Time()), h.Nombre, h.Tipo)
			}
			query := `INSERT INTO feriados (fecha, nombre, tipo) VALUES ` + placeholders(len(batch), 3) + `
				ON CONFLICT (fecha) DO UPDATE SET
					nombre = EXCLUDED.nombre,
					tipo = EXCLUDED.tipo`
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert feriados: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(hs), nil
}

// UpsertSeries inserta o actualiza observaciones por fecha en lotes de
// BatchSize.
func (s *Store) UpsertSeries(ctx context.Context, series model.Series, obs []model.Observation) (int, error) {
	table, err := seriesTable(series)
	if err != nil {
		return 0, err
	}
	obs = dedupe(obs, func(o model.Observation) string { return o.Fecha.String() })
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(obs); start += BatchSize {
			batch := obs[start:min(start+BatchSize, len(obs))]
			args := make([]any, 0, len(batch)*2)
			for _, o := range batch {
				if o.Fecha.Time().IsZero() {
					return fmt.Errorf("%s: observación sin fecha", series)
				}
				args = append(args, fecha.Format(o.Fecha.Time()), o.Valor)
			}
			query := `INSERT INTO ` + table + ` (fecha, valor) VALUES ` + placeholders(len(batch), 2) + `
				ON CONFLICT (fecha) DO UPDATE SET valor = EXCLUDED.valor`
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(obs), nil
}

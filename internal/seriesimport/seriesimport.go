// Package seriesimport lee series diarias (CER, BADLAR, TAMAR) desde
// archivos CSV o planillas XLS y las guarda en la base.
package seriesimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/numfmt"
)

// Columns indica de qué columnas (base 0) salen la fecha y el valor.
type Columns struct {
	Date  int
	Value int
}

// DefaultColumns es fecha en la primera columna y valor en la segunda.
var DefaultColumns = Columns{Date: 0, Value: 1}

// excelEpoch es el día 0 de las fechas seriales de Excel.
var excelEpoch = fecha.Date(1899, time.December, 30)

var cellDateLayouts = []string{"2006.01.02", "02-01-06", "1/2/06", "02-01-2006"}

// parseDate acepta los formatos de fecha habituales y fechas seriales.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := fecha.Parse(s); ok {
		return t, true
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 100000 {
		return excelEpoch.AddDate(0, 0, int(math.Floor(serial))), true
	}
	return time.Time{}, false
}

// parseValue prueba primero punto decimal y luego coma decimal.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	return numfmt.Parse(s)
}

// rowsToObservations convierte filas; las que no tienen fecha válida
// (encabezados, totales) se saltean.
func rowsToObservations(rows [][]string, cols Columns) ([]model.Observation, int) {
	var out []model.Observation
	skipped := 0
	for _, row := range rows {
		if cols.Date >= len(row) || cols.Value >= len(row) {
			skipped++
			continue
		}
		t, ok := parseDate(row[cols.Date])
		if !ok {
			skipped++
			continue
		}
		v, ok := parseValue(row[cols.Value])
		if !ok {
			skipped++
			continue
		}
		out = append(out, model.Observation{Fecha: fecha.Fecha(t), Valor: v})
	}
	return out, skipped
}

// ReadCSV lee un CSV separado por comas o punto y coma.
func ReadCSV(r io.Reader, cols Columns) ([]model.Observation, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	first, _, _ := strings.Cut(string(data), "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		reader.Comma = ';'
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("leer csv: %w", err)
	}
	obs, skipped := rowsToObservations(rows, cols)
	return obs, skipped, nil
}

// ReadXLS lee la primera hoja de una planilla XLS.
func ReadXLS(path string, cols Columns) ([]model.Observation, int, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, 0, fmt.Errorf("abrir xls: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, 0, fmt.Errorf("%s: planilla sin hojas", path)
	}
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		rows = append(rows, []string{row.Col(cols.Date), row.Col(cols.Value)})
	}
	obs, skipped := rowsToObservations(rows, Columns{Date: 0, Value: 1})
	return obs, skipped, nil
}

// ReadFile elige el lector según la extensión (.csv, .txt o .xls).
func ReadFile(path string, cols Columns) ([]model.Observation, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		return ReadCSV(f, cols)
	case ".xls":
		return ReadXLS(path, cols)
	}
	return nil, 0, fmt.Errorf("formato no soportado: %s", path)
}

// Upserter guarda observaciones de una serie por fecha.
type Upserter interface {
	UpsertSeries(ctx context.Context, s model.Series, obs []model.Observation) (int, error)
}

// Import lee path y guarda sus observaciones en la serie s.
func Import(ctx context.Context, dst Upserter, s model.Series, path string, cols Columns, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !s.Valid() {
		return 0, fmt.Errorf("serie desconocida: %q", s)
	}
	obs, skipped, err := ReadFile(path, cols)
	if err != nil {
		return 0, err
	}
	if len(obs) == 0 {
		return 0, fmt.Errorf("%s: sin observaciones válidas", path)
	}
	n, err := dst.UpsertSeries(ctx, s, obs)
	if err != nil {
		return 0, fmt.Errorf("guardar %s: %w", s, err)
	}
	log.Info("serie importada",
		zap.String("serie", string(s)),
		zap.String("archivo", path),
		zap.Int("filas", n),
		zap.Int("salteadas", skipped))
	return n, nil
}

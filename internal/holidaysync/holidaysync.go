// Package holidaysync trae los feriados nacionales de ArgentinaDatos y los
// guarda en la base, a pedido o una vez por día.
package holidaysync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jasonlvhit/gocron"
	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

const (
	// DefaultAPIURL es la API de feriados; se consulta como {url}/{año}.
	DefaultAPIURL  = "https://api.argentinadatos.com/v1/feriados"
	DefaultTimeout = 10 * time.Second
	// DefaultSyncAt es la hora de la sincronización diaria.
	DefaultSyncAt = "03:00"
)

// MinDate es la primera fecha que se sincroniza.
var MinDate = fecha.Date(2020, time.January, 1)

// Fetcher consulta la API de feriados.
type Fetcher struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewFetcher crea el cliente. baseURL vacío usa DefaultAPIURL.
func NewFetcher(baseURL string, timeout time.Duration, log *zap.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type apiHoliday struct {
	Fecha  string `json:"fecha"`
	Tipo   string `json:"tipo"`
	Nombre string `json:"nombre"`
}

// Year trae los feriados de un año. Un 404 es un año sin datos.
func (f *Fetcher) Year(ctx context.Context, year int) ([]model.Holiday, error) {
	url := f.baseURL + "/" + strconv.Itoa(year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feriados %d: %w", year, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		f.log.Warn("año sin feriados", zap.Int("anio", year))
		return nil, nil
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("feriados %d: status %d", year, res.StatusCode)
	}

	var raw []apiHoliday
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode feriados %d: %w", year, err)
	}
	out := make([]model.Holiday, 0, len(raw))
	for _, h := range raw {
		day, _, _ := strings.Cut(h.Fecha, "T")
		t, ok := fecha.Parse(day)
		if !ok {
			f.log.Warn("feriado con fecha inválida", zap.String("fecha", h.Fecha))
			continue
		}
		out = append(out, model.Holiday{Fecha: fecha.Fecha(t), Nombre: h.Nombre, Tipo: h.Tipo})
	}
	f.log.Debug("feriados obtenidos", zap.Int("anio", year), zap.Int("cantidad", len(out)))
	return out, nil
}

// Range trae los feriados de [from, to] año por año, desde MinDate como
// mínimo. Una fecha repetida conserva la primera aparición.
func (f *Fetcher) Range(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	from = fecha.Max(fecha.Truncate(from), MinDate)
	to = fecha.Truncate(to)
	if to.Before(from) {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var out []model.Holiday
	for year := from.Year(); year <= to.Year(); year++ {
		hs, err := f.Year(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			t := h.Fecha.Time()
			if t.Before(from) || t.After(to) {
				continue
			}
			key := h.Fecha.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}

// Upserter guarda feriados por fecha.
type Upserter interface {
	UpsertHolidays(ctx context.Context, hs []model.Holiday) (int, error)
}

// Syncer copia los feriados de la API a la base.
type Syncer struct {
	fetch *Fetcher
	dst   Upserter
	log   *zap.Logger
}

// NewSyncer crea el sincronizador.
func NewSyncer(fetch *Fetcher, dst Upserter, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{fetch: fetch, dst: dst, log: log}
}

// Sync trae [from, to] y lo guarda. Devuelve la cantidad de feriados
// guardados.
func (s *Syncer) Sync(ctx context.Context, from, to time.Time) (int, error) {
	hs, err := s.fetch.Range(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if len(hs) == 0 {
		return 0, nil
	}
	n, err := s.dst.UpsertHolidays(ctx, hs)
	if err != nil {
		return 0, fmt.Errorf("guardar feriados: %w", err)
	}
	s.log.Info("feriados sincronizados",
		zap.Time("desde", from),
		zap.Time("hasta", to),
		zap.Int("cantidad", n))
	return n, nil
}

// DefaultWindow es el rango de la sincronización diaria: el año anterior,
// el actual y el siguiente.
func DefaultWindow(now time.Time) (time.Time, time.Time) {
	y := now.Year()
	return fecha.Date(y-1, time.January, 1), fecha.Date(y+1, time.December, 31)
}

// Schedule corre Sync todos los días a la hora at ("HH:MM"). La función
// devuelta detiene el scheduler.
func (s *Syncer) Schedule(ctx context.Context, at string) (stop func(), err error) {
	if at == "" {
		at = DefaultSyncAt
	}
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, fmt.Errorf("hora de sincronización inválida %q: %w", at, err)
	}
	job := func() {
		from, to := DefaultWindow(time.Now())
		if _, err := s.Sync(ctx, from, to); err != nil {
			s.log.Error("sincronización de feriados", zap.Error(err))
		}
	}
	sched := gocron.NewScheduler()
	if err := sched.Every(1).Day().At(at).Do(job); err != nil {
		return nil, fmt.Errorf("agendar feriados: %w", err)
	}
	done := sched.Start()
	s.log.Info("sincronización diaria de feriados", zap.String("hora", at))
	return func() {
		sched.Clear()
		close(done)
	}, nil
}

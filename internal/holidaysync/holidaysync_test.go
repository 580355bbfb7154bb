package holidaysync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

var d = fecha.MustParse

func fakeAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/feriados/2023":
			_, _ = w.Write([]byte(`[{"fecha":"2023-12-25","tipo":"inamovible","nombre":"Navidad"}]`))
		case "/feriados/2024":
			_, _ = w.Write([]byte(`[
				{"fecha":"2024-01-01T00:00:00","tipo":"inamovible","nombre":"Año nuevo"},
				{"fecha":"2024-07-09","tipo":"inamovible","nombre":"Independencia"},
				{"fecha":"2024-07-09","tipo":"inamovible","nombre":"Repetido"},
				{"fecha":"no-es-fecha","tipo":"","nombre":"roto"}
			]`))
		case "/feriados/2025":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestYear(t *testing.T) {
	srv, _ := fakeAPI(t)
	f := NewFetcher(srv.URL+"/feriados/", time.Second, nil)
	ctx := context.Background()

	hs, err := f.Year(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, hs, 3)
	assert.Equal(t, d("2024-01-01"), hs[0].Fecha.Time())
	assert.Equal(t, "Independencia", hs[1].Nombre)

	hs, err = f.Year(ctx, 2025)
	require.NoError(t, err)
	assert.Empty(t, hs)

	_, err = f.Year(ctx, 2030)
	assert.Error(t, err)
}

func TestRangeFiltersAndDedupes(t *testing.T) {
	srv, paths := fakeAPI(t)
	f := NewFetcher(srv.URL+"/feriados", 0, nil)

	hs, err := f.Range(context.Background(), d("2023-06-01"), d("2025-03-01"))
	require.NoError(t, err)
	require.Len(t, hs, 3)
	assert.Equal(t, "Navidad", hs[0].Nombre)
	assert.Equal(t, "Independencia", hs[2].Nombre)
	assert.Equal(t, []string{"/feriados/2023", "/feriados/2024", "/feriados/2025"}, *paths)
}

func TestRangeStartsAtMinDate(t *testing.T) {
	srv, paths := fakeAPI(t)
	f := NewFetcher(srv.URL+"/feriados", 0, nil)

	hs, err := f.Range(context.Background(), d("2010-01-01"), d("2019-12-31"))
	require.NoError(t, err)
	assert.Empty(t, hs)
	assert.Empty(t, *paths)
}

type memUpserter struct {
	got []model.Holiday
}

func (m *memUpserter) UpsertHolidays(_ context.Context, hs []model.Holiday) (int, error) {
	m.got = append(m.got, hs...)
	return len(hs), nil
}

func TestSync(t *testing.T) {
	srv, _ := fakeAPI(t)
	dst := &memUpserter{}
	s := NewSyncer(NewFetcher(srv.URL+"/feriados", 0, nil), dst, nil)

	n, err := s.Sync(context.Background(), d("2024-01-01"), d("2024-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, dst.got, 2)
}

func TestScheduleRejectsBadTime(t *testing.T) {
	s := NewSyncer(NewFetcher("", 0, nil), &memUpserter{}, nil)
	_, err := s.Schedule(context.Background(), "25:99")
	assert.Error(t, err)
}

func TestDefaultWindow(t *testing.T) {
	from, to := DefaultWindow(d("2024-05-10"))
	assert.Equal(t, d("2023-01-01"), from)
	assert.Equal(t, d("2025-12-31"), to)
}

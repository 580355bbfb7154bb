package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

var d = fecha.MustParse

func TestHolidaysAndSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("desde"))
		assert.Equal(t, "2024-12-31", r.URL.Query().Get("hasta"))
		switch r.URL.Path {
		case "/api/feriados/bd":
			_, _ = w.Write([]byte(`{"success":true,"datos":[{"fecha":"2024-07-09","nombre":"Independencia","tipo":"inamovible"}]}`))
		case "/api/cer/bd":
			_, _ = w.Write([]byte(`{"success":true,"datos":[{"fecha":"2024-01-02","valor":123.45}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, nil)
	ctx := context.Background()

	hs, err := c.Holidays(ctx, d("2024-01-01"), d("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, d("2024-07-09"), hs[0].Fecha.Time())
	assert.Equal(t, "Independencia", hs[0].Nombre)

	obs, err := c.Series(ctx, model.SeriesCER, d("2024-01-01"), d("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 123.45, obs[0].Valor)

	_, err = c.Series(ctx, model.SeriesTAMAR, d("2024-01-01"), d("2024-12-31"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"error":"Base de datos no configurada"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0, nil).Holidays(context.Background(), d("2024-01-01"), d("2024-01-31"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, err.Error(), "Base de datos no configurada")
}

func TestPresets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/calculadoras/guardar":
			var p model.Preset
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			assert.Equal(t, "AL30", p.Nombre)
			_, _ = w.Write([]byte(`{"success":true,"calculadora":{"id":7,"nombre":"AL30","fecha_creacion":"2024-05-01T10:00:00Z"},"message":"ok"}`))
		case r.URL.Path == "/api/calculadoras/7":
			_, _ = w.Write([]byte(`{"success":true,"calculadora":{"id":7,"nombre":"AL30","fechaCompra":"02/01/2024","ajusteCER":true}}`))
		case r.URL.Path == "/api/calculadoras":
			_, _ = w.Write([]byte(`{"success":true,"calculadoras":[{"id":7,"nombre":"AL30","fecha_creacion":"2024-05-01T10:00:00Z"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, 0, nil)
	ctx := context.Background()

	sum, err := c.SavePreset(ctx, model.Preset{Nombre: "AL30"})
	require.NoError(t, err)
	assert.EqualValues(t, 7, sum.ID)

	p, err := c.Preset(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "02/01/2024", p.FechaCompra)
	assert.True(t, p.AjusteCER)

	list, err := c.Presets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AL30", list[0].Nombre)
}

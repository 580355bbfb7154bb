// Package client consume el servicio de datos de referencia (feriados,
// series y calculadoras guardadas) por HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
)

// DefaultTimeout es el timeout de cada consulta.
const DefaultTimeout = 10 * time.Second

// Client habla con la API de `cupones serve`.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New crea un cliente. timeout 0 usa DefaultTimeout.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// APIError es una respuesta {success:false} o un status no exitoso.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success      bool            `json:"success"`
	Error        string          `json:"error"`
	Datos        json.RawMessage `json:"datos"`
	Calculadora  json.RawMessage `json:"calculadora"`
	Calculadoras json.RawMessage `json:"calculadoras"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		if res.StatusCode >= 300 {
			return nil, &APIError{Status: res.StatusCode}
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if res.StatusCode >= 300 || !env.Success {
		return nil, &APIError{Status: res.StatusCode, Message: env.Error}
	}
	return &env, nil
}

func rangeQuery(from, to time.Time) url.Values {
	q := url.Values{}
	q.Set("desde", fecha.Format(from))
	q.Set("hasta", fecha.Format(to))
	return q
}

// Holidays trae los feriados de [from, to].
func (c *Client) Holidays(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/feriados/bd", rangeQuery(from, to), nil)
	if err != nil {
		return nil, err
	}
	var out []model.Holiday
	if err := json.Unmarshal(env.Datos, &out); err != nil {
		return nil, fmt.Errorf("decode feriados: %w", err)
	}
	return out, nil
}

// Series trae las observaciones de una serie en [from, to].
func (c *Client) Series(ctx context.Context, s model.Series, from, to time.Time) ([]model.Observation, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/"+string(s)+"/bd", rangeQuery(from, to), nil)
	if err != nil {
		return nil, err
	}
	var out []model.Observation
	if err := json.Unmarshal(env.Datos, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s, err)
	}
	return out, nil
}

// SavePreset guarda los parámetros de una calculadora.
func (c *Client) SavePreset(ctx context.Context, p model.Preset) (model.PresetSummary, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/calculadoras/guardar", nil, p)
	if err != nil {
		return model.PresetSummary{}, err
	}
	var out model.PresetSummary
	if err := json.Unmarshal(env.Calculadora, &out); err != nil {
		return model.PresetSummary{}, fmt.Errorf("decode calculadora: %w", err)
	}
	return out, nil
}

// Preset trae una calculadora guardada; las fechas vienen como DD/MM/YYYY.
func (c *Client) Preset(ctx context.Context, id int64) (model.Preset, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/calculadoras/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return model.Preset{}, err
	}
	var out model.Preset
	if err := json.Unmarshal(env.Calculadora, &out); err != nil {
		return model.Preset{}, fmt.Errorf("decode calculadora: %w", err)
	}
	return out, nil
}

// Presets lista las calculadoras guardadas, más nuevas primero.
func (c *Client) Presets(ctx context.Context) ([]model.PresetSummary, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/calculadoras", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []model.PresetSummary
	if err := json.Unmarshal(env.Calculadoras, &out); err != nil {
		return nil, fmt.Errorf("decode calculadoras: %w", err)
	}
	return out, nil
}

// Package cache provee los cachés de datos de referencia de una sesión de
// calculadora: uno que crece hasta cubrir la unión de los rangos pedidos
// (feriados, CER) y otro por rango con vencimiento (BADLAR, TAMAR).
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmtruffa/cupones/internal/fecha"
)

// FetchFunc trae los datos de un rango de fechas.
type FetchFunc[T any] func(ctx context.Context, from, to time.Time) ([]T, error)

func rangeKey(from, to time.Time) string {
	return fecha.Format(from) + "|" + fecha.Format(to)
}

// RangeCache guarda un único tramo continuo [from, to]. Un pedido fuera del
// tramo lo amplía a la unión con el tramo actual.
type RangeCache[T any] struct {
	mu     sync.RWMutex
	from   time.Time
	to     time.Time
	items  []T
	dateOf func(T) time.Time
	group  singleflight.Group
}

// NewRangeCache recibe la función que obtiene la fecha de cada elemento.
func NewRangeCache[T any](dateOf func(T) time.Time) *RangeCache[T] {
	return &RangeCache[T]{dateOf: dateOf}
}

// Covers reporta si [from, to] está dentro del tramo cacheado.
func (c *RangeCache[T]) Covers(from, to time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.covers(from, to)
}

func (c *RangeCache[T]) covers(from, to time.Time) bool {
	if c.from.IsZero() {
		return false
	}
	return !from.Before(c.from) && !to.After(c.to)
}

// Get devuelve los elementos de [from, to] si el tramo los cubre.
func (c *RangeCache[T]) Get(from, to time.Time) ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.covers(from, to) {
		return nil, false
	}
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		d := c.dateOf(it)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, it)
	}
	return out, true
}

// Set reemplaza el tramo cacheado. Load sólo llama con rangos que incluyen
// el tramo vigente.
func (c *RangeCache[T]) Set(from, to time.Time, items []T) {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return c.dateOf(sorted[i]).Before(c.dateOf(sorted[j])) })
	c.mu.Lock()
	c.from, c.to, c.items = from, to, sorted
	c.mu.Unlock()
}

// Expand devuelve el rango a pedir para cubrir [from, to] sin perder el
// tramo actual.
func (c *RangeCache[T]) Expand(from, to time.Time) (time.Time, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.from.IsZero() {
		return from, to
	}
	return fecha.Min(from, c.from), fecha.Max(to, c.to)
}

// Bounds devuelve el tramo cacheado.
func (c *RangeCache[T]) Bounds() (from, to time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.from, c.to
}

// Clear vacía el caché.
func (c *RangeCache[T]) Clear() {
	c.mu.Lock()
	c.from, c.to, c.items = time.Time{}, time.Time{}, nil
	c.mu.Unlock()
}

// loadKey es la única clave de singleflight del tramo: las cargas se
// serializan y cada una amplía el tramo vigente al momento de consultar.
const loadKey = "tramo"

// Load devuelve [from, to] desde el caché o lo trae ampliando el tramo.
// Pedidos concurrentes comparten la consulta en curso y, si no alcanza,
// piden luego la unión con lo que esa consulta dejó cacheado.
func (c *RangeCache[T]) Load(ctx context.Context, from, to time.Time, fetch FetchFunc[T]) ([]T, error) {
	for {
		if items, ok := c.Get(from, to); ok {
			return items, nil
		}
		ran := false
		_, err, _ := c.group.Do(loadKey, func() (any, error) {
			ran = true
			nf, nt := c.Expand(from, to)
			items, err := fetch(ctx, nf, nt)
			if err != nil {
				return nil, err
			}
			c.Set(nf, nt, items)
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
		if ran {
			items, _ := c.Get(from, to)
			return items, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

type entry[T any] struct {
	items     []T
	expiresAt time.Time
}

// TTLCache guarda resultados por rango exacto durante ttl.
type TTLCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// DefaultTTL es el vencimiento de las series de tasas.
const DefaultTTL = 5 * time.Minute

// NewTTLCache crea un caché con el vencimiento dado (DefaultTTL si es 0).
func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get devuelve el rango si está cacheado y vigente.
func (c *TTLCache[T]) Get(from, to time.Time) ([]T, bool) {
	c.mu.RLock()
	e, ok := c.entries[rangeKey(from, to)]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.items, true
}

// Set guarda el rango con el vencimiento por defecto.
func (c *TTLCache[T]) Set(from, to time.Time, items []T) {
	c.mu.Lock()
	c.entries[rangeKey(from, to)] = entry[T]{items: items, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Clear vacía el caché.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Cleanup elimina entradas vencidas.
func (c *TTLCache[T]) Cleanup() {
	c.mu.Lock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Load devuelve el rango cacheado o lo trae con fetch.
func (c *TTLCache[T]) Load(ctx context.Context, from, to time.Time, fetch FetchFunc[T]) ([]T, error) {
	if items, ok := c.Get(from, to); ok {
		return items, nil
	}
	v, err, _ := c.group.Do(rangeKey(from, to), func() (any, error) {
		items, err := fetch(ctx, from, to)
		if err != nil {
			return nil, err
		}
		c.Set(from, to, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

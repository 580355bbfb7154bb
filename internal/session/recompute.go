package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/model"
)

// DefaultDebounce es la espera entre el último cambio y el recálculo.
const DefaultDebounce = 300 * time.Millisecond

// Update es el resultado de un recálculo publicado.
type Update struct {
	Generation uint64
	Rows       []model.Row
	Err        error
}

// Recomputer serializa los recálculos de una sesión: agrupa los cambios
// que llegan dentro de la espera, cancela la carga en curso cuando llega
// uno nuevo y descarta los resultados de generaciones viejas.
type Recomputer struct {
	s        *Session
	debounce time.Duration
	onUpdate func(Update)

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool

	run sync.Mutex
}

// NewRecomputer crea el recomputador. onUpdate recibe cada resultado
// vigente; debounce 0 usa DefaultDebounce.
func NewRecomputer(s *Session, debounce time.Duration, onUpdate func(Update)) *Recomputer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}
	return &Recomputer{s: s, debounce: debounce, onUpdate: onUpdate}
}

// Request agenda un recálculo con p y devuelve su generación.
func (r *Recomputer) Request(ctx context.Context, p Params) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.gen
	}
	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.timer = time.AfterFunc(r.debounce, func() { r.execute(runCtx, gen, p) })
	return gen
}

func (r *Recomputer) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && gen == r.gen
}

func (r *Recomputer) execute(ctx context.Context, gen uint64, p Params) {
	r.run.Lock()
	defer r.run.Unlock()
	if !r.current(gen) {
		return
	}

	st, err := r.s.load(ctx, p)
	if err == nil {
		err = ctx.Err()
	}
	if !r.current(gen) {
		r.s.log.Debug("recálculo descartado", zap.Uint64("generacion", gen))
		return
	}
	if err != nil {
		r.onUpdate(Update{Generation: gen, Err: err})
		return
	}

	r.s.mu.Lock()
	r.s.commit(st)
	rows := r.s.snapshot()
	r.s.mu.Unlock()
	r.onUpdate(Update{Generation: gen, Rows: rows})
}

// Close cancela lo pendiente; los pedidos posteriores se ignoran.
func (r *Recomputer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
}

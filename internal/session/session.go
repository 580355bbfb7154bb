// Package session orquesta una calculadora de cupones: carga los datos de
// referencia necesarios, arma la tabla, la recalcula y resuelve la TIR.
// Todo el estado mutable (cachés, filas, última TIR, numeración de filas)
// vive en Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmtruffa/cupones/internal/cache"
	"github.com/jmtruffa/cupones/internal/calendar"
	"github.com/jmtruffa/cupones/internal/irr"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/pipeline"
	"github.com/jmtruffa/cupones/internal/rates"
	"github.com/jmtruffa/cupones/internal/schedule"
)

var (
	ErrMissingPurchaseDate   = errors.New("Debe ingresar la fecha de compra.")
	ErrNoRows                = errors.New("Debe cargar la inversión y al menos un cupón.")
	ErrInvestmentFlowMissing = errors.New("Complete el flujo de la inversión antes de calcular la TIR.")
	ErrNoCoupons             = errors.New("Debe agregar al menos un cupón.")
	ErrMissingCouponFlows    = errors.New("Faltan flujos en algunos cupones. Verifique amortizaciones y rentas.")
	ErrNotEnoughFlows        = errors.New("No hay flujos suficientes para calcular la TIR.")
	ErrUnknownRow            = errors.New("fila inexistente")
)

// DataSource provee feriados y series por rango de fechas.
type DataSource interface {
	Holidays(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
	Series(ctx context.Context, s model.Series, from, to time.Time) ([]model.Observation, error)
}

// Session es una calculadora abierta.
type Session struct {
	src DataSource
	log *zap.Logger

	holidays *cache.RangeCache[model.Holiday]
	cer      *cache.RangeCache[model.Observation]
	rateTTL  map[model.Series]*cache.TTLCache[model.Observation]

	mu      sync.Mutex
	nextID  int
	params  Params
	rows    []model.Row
	cal     *calendar.Calendar
	cerData *rates.Series
	rateSrc *rates.Series
	lastIRR *irr.Result
}

// New crea una sesión. rateTTL 0 usa cache.DefaultTTL.
func New(src DataSource, rateTTL time.Duration, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	obsDate := func(o model.Observation) time.Time { return o.Fecha.Time() }
	return &Session{
		src:      src,
		log:      log,
		holidays: cache.NewRangeCache(func(h model.Holiday) time.Time { return h.Fecha.Time() }),
		cer:      cache.NewRangeCache(obsDate),
		rateTTL: map[model.Series]*cache.TTLCache[model.Observation]{
			model.SeriesBADLAR: cache.NewTTLCache[model.Observation](rateTTL),
			model.SeriesTAMAR:  cache.NewTTLCache[model.Observation](rateTTL),
		},
	}
}

// ClearCache descarta los datos de referencia cacheados.
func (s *Session) ClearCache() {
	s.holidays.Clear()
	s.cer.Clear()
	for _, c := range s.rateTTL {
		c.Clear()
	}
}

// loaded es el resultado de preparar una tabla, antes de publicarla.
type loaded struct {
	params  Params
	input   schedule.Input
	cal     *calendar.Calendar
	cerData *rates.Series
	rateSrc *rates.Series
}

func (s *Session) load(ctx context.Context, p Params) (*loaded, error) {
	in := p.scheduleInput()
	st := &loaded{params: p, input: in, cal: calendar.New()}

	payments := schedule.PaymentDates(in)
	from, to, ok := schedule.Window(in, payments)
	if len(payments) == 0 || !ok {
		s.log.Debug("sin fechas de pago", zap.String("ticker", p.Ticker))
		return st, nil
	}
	s.log.Debug("ventana de datos",
		zap.Time("desde", from),
		zap.Time("hasta", to),
		zap.Int("pagos", len(payments)))

	var hs []model.Holiday
	var cerObs, rateObs []model.Observation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hs, err = s.holidays.Load(gctx, from, to, s.src.Holidays)
		if err != nil {
			return fmt.Errorf("feriados: %w", err)
		}
		return nil
	})
	if p.AdjustCER {
		g.Go(func() error {
			var err error
			cerObs, err = s.cer.Load(gctx, from, to, s.fetchSeries(model.SeriesCER))
			if err != nil {
				return fmt.Errorf("cer: %w", err)
			}
			return nil
		})
	}
	if series, ok := rateSeries(p.RateKind); ok {
		// las últimas N tasas pueden caer antes de la ventana
		rateFrom := from.AddDate(0, 0, -2*p.Formula.N)
		g.Go(func() error {
			var err error
			rateObs, err = s.rateTTL[series].Load(gctx, rateFrom, to, s.fetchSeries(series))
			if err != nil {
				return fmt.Errorf("%s: %w", series, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.cal = calendar.FromRecords(hs)
	st.cerData = rates.NewSeries(cerObs)
	st.rateSrc = rates.NewSeries(rateObs)
	s.log.Debug("datos cargados",
		zap.Int("feriados", len(hs)),
		zap.Int("cer", len(cerObs)),
		zap.Int("tasas", len(rateObs)))
	return st, nil
}

func (s *Session) fetchSeries(series model.Series) cache.FetchFunc[model.Observation] {
	return func(ctx context.Context, from, to time.Time) ([]model.Observation, error) {
		return s.src.Series(ctx, series, from, to)
	}
}

func rateSeries(k pipeline.RateKind) (model.Series, bool) {
	switch k {
	case pipeline.RateBADLAR:
		return model.SeriesBADLAR, true
	case pipeline.RateTAMAR:
		return model.SeriesTAMAR, true
	}
	return "", false
}

// commit arma las filas con los datos cargados y recalcula. Debe llamarse
// con s.mu tomado.
func (s *Session) commit(st *loaded) {
	s.params = st.params
	s.cal = st.cal
	s.cerData = st.cerData
	s.rateSrc = st.rateSrc
	s.lastIRR = nil
	s.rows = schedule.Build(st.input, st.cal, st.cerData, s.newID)
	s.recalculate()
}

func (s *Session) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// Autocomplete carga los datos de referencia y reconstruye la tabla desde
// cero. Con parámetros incompletos la tabla queda vacía.
func (s *Session) Autocomplete(ctx context.Context, p Params) ([]model.Row, error) {
	st, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(st)
	return s.snapshot(), nil
}

func (s *Session) inputs() pipeline.Inputs {
	p := s.params
	in := pipeline.Inputs{
		Convention:      p.Convention,
		AmortizationPct: p.AmortizationPct,
		RateKind:        p.RateKind,
		Formula:         p.Formula,
		TNA:             p.TNA,
		Spread:          p.Spread,
		RateSeries:      s.rateSrc,
		Calendar:        s.cal,
		AdjustCER:       p.AdjustCER,
		Price:           p.Price,
		Quantity:        p.Quantity,
		PurchaseDate:    p.PurchaseDate,
		ValuationDate:   p.ValuationDate,
	}
	if p.AdjustCER && !p.IssueDate.IsZero() {
		in.CERBase = s.cerData.PointPtr(s.cal.AddBusinessDays(p.IssueDate, p.IntervalStartOffset))
	}
	if s.lastIRR != nil {
		rate := s.lastIRR.Rate
		in.IRR = &rate
	}
	return in
}

func (s *Session) recalculate() {
	if len(s.rows) == 0 {
		return
	}
	res := pipeline.Run(s.rows, s.inputs())
	s.log.Debug("tabla recalculada",
		zap.Int("filas", len(s.rows)),
		zap.Float64("residual_inicial", res.ResidualAtStart))
}

func (s *Session) snapshot() []model.Row {
	out := make([]model.Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Rows devuelve una copia de la tabla actual.
func (s *Session) Rows() []model.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Params devuelve los parámetros de la última tabla armada.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) row(id string) (*model.Row, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRow, id)
}

// SetManualAmortization fija (o con nil libera) la amortización de un cupón
// y recalcula.
func (s *Session) SetManualAmortization(id string, pct *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.ManualAmortizationPct = pct
	s.recalculate()
	return nil
}

// SetManualRate fija (o con nil libera) la tasa nominal de un cupón y
// recalcula.
func (s *Session) SetManualRate(id string, rate *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.row(id)
	if err != nil {
		return err
	}
	r.ManualNominalRate = rate
	s.recalculate()
	return nil
}

// SolveIRR recalcula los flujos, resuelve la TIR a la fecha de compra y
// vuelve a recalcular para completar factores y flujos descontados.
func (s *Session) SolveIRR() (irr.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.params.PurchaseDate.IsZero() {
		return irr.Result{}, ErrMissingPurchaseDate
	}
	s.recalculate()
	if len(s.rows) == 0 {
		return irr.Result{}, ErrNoRows
	}

	var flows []irr.Flow
	var investment *model.Row
	coupons := 0
	missing := 0
	for i := range s.rows {
		r := &s.rows[i]
		if r.IsInvestment() {
			investment = r
			continue
		}
		coupons++
		if r.CashFlow == nil {
			missing++
			continue
		}
		flows = append(flows, irr.Flow{Date: r.SettlementDate, Amount: *r.CashFlow})
	}
	switch {
	case investment == nil || investment.CashFlow == nil:
		return irr.Result{}, ErrInvestmentFlowMissing
	case coupons == 0:
		return irr.Result{}, ErrNoCoupons
	case missing > 0:
		return irr.Result{}, fmt.Errorf("%w (%d)", ErrMissingCouponFlows, missing)
	}
	flows = append(flows, irr.Flow{Date: investment.SettlementDate, Amount: *investment.CashFlow})
	if len(flows) < 2 {
		return irr.Result{}, ErrNotEnoughFlows
	}

	res := irr.Solve(flows, s.params.PurchaseDate, s.params.Convention)
	if !res.Converged {
		s.log.Warn("la TIR no convergió",
			zap.Int("iteraciones", res.Iterations),
			zap.Float64("tasa", res.Rate))
	}
	s.lastIRR = &res
	s.recalculate()
	return res, nil
}

// PriceForYield es el precio por unidad de valor nominal con el que la
// tabla rinde rate a la fecha de compra. Es la inversa de SolveIRR.
func (s *Session) PriceForYield(rate float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.params
	if p.PurchaseDate.IsZero() {
		return 0, ErrMissingPurchaseDate
	}
	if len(s.rows) == 0 {
		return 0, ErrNoRows
	}
	if p.Quantity == nil || *p.Quantity == 0 {
		return 0, fmt.Errorf("%w: cantidad", ErrInvalidParam)
	}
	coef := 1.0
	var flows []irr.Flow
	for i := range s.rows {
		r := &s.rows[i]
		if r.IsInvestment() {
			if p.AdjustCER {
				if r.IndexCoefficient == nil {
					return 0, ErrInvestmentFlowMissing
				}
				coef = *r.IndexCoefficient
			}
			continue
		}
		if r.CashFlow == nil {
			return 0, ErrMissingCouponFlows
		}
		flows = append(flows, irr.Flow{Date: r.SettlementDate, Amount: *r.CashFlow})
	}
	if len(flows) == 0 {
		return 0, ErrNoCoupons
	}
	return irr.NPV(rate, flows, p.PurchaseDate, p.Convention) / (*p.Quantity * coef), nil
}

// ValuationCER es el CER a la fecha de valuación desplazada intervaloFin
// días hábiles; nil sin ajuste CER o sin dato.
func (s *Session) ValuationCER() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.params
	valuation := p.Valuation()
	if !p.AdjustCER || valuation.IsZero() {
		return nil
	}
	return s.cerData.PointPtr(s.cal.AddBusinessDays(valuation, p.IntervalEndOffset))
}

// Summary resume el precio luego de calcular la TIR.
type Summary struct {
	IRR *irr.Result
	pipeline.Totals
	ValuationCER *float64
}

// Summary devuelve la TIR, las sumas de flujos descontados y pagos
// actualizados y el valor técnico.
func (s *Session) Summary() Summary {
	cer := s.ValuationCER()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Summary{ValuationCER: cer}
	if s.lastIRR != nil {
		res := *s.lastIRR
		out.IRR = &res
	}
	if len(s.rows) > 0 {
		out.Totals = pipeline.Sum(s.rows, s.inputs())
	}
	return out
}

package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmtruffa/cupones/internal/daycount"
	"github.com/jmtruffa/cupones/internal/fecha"
	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/pipeline"
)

var d = fecha.MustParse

// fakeSource genera datos diarios para cualquier rango pedido.
type fakeSource struct {
	holidayCalls atomic.Int32
	seriesCalls  atomic.Int32
	err          error
	rate         float64
}

func (f *fakeSource) Holidays(_ context.Context, from, to time.Time) ([]model.Holiday, error) {
	f.holidayCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Holiday
	for _, h := range []string{"2024-07-09", "2024-12-25", "2025-01-01"} {
		t := d(h)
		if !t.Before(from) && !t.After(to) {
			out = append(out, model.Holiday{Fecha: fecha.Fecha(t), Nombre: "feriado"})
		}
	}
	return out, nil
}

func (f *fakeSource) Series(_ context.Context, s model.Series, from, to time.Time) ([]model.Observation, error) {
	f.seriesCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	base := d("2023-01-01")
	var out []model.Observation
	for t := from; !t.After(to); t = t.AddDate(0, 0, 1) {
		v := f.rate
		if s == model.SeriesCER {
			v = 100 + t.Sub(base).Hours()/24*0.1
		}
		out = append(out, model.Observation{Fecha: fecha.Fecha(t), Valor: v})
	}
	return out, nil
}

func ptr(v float64) *float64 { return &v }

func fixedParams() Params {
	return Params{
		PurchaseDate:     d("2024-01-02"),
		Price:            ptr(1),
		Quantity:         ptr(1000),
		RateKind:         pipeline.RateFixed,
		TNA:              ptr(10),
		Convention:       daycount.Actual365,
		IssueDate:        d("2023-01-15"),
		FirstPayment:     "15/07",
		AmortizationDate: d("2025-01-15"),
		AmortizationPct:  ptr(50),
		Periodicity:      "semestral",
	}
}

func TestAutocompleteBuildsAndCaches(t *testing.T) {
	src := &fakeSource{}
	s := New(src, 0, nil)
	ctx := context.Background()

	rows, err := s.Autocomplete(ctx, fixedParams())
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.True(t, rows[0].IsInvestment())
	assert.Equal(t, []int{2, 3, 4}, []int{rows[1].CouponNumber, rows[2].CouponNumber, rows[3].CouponNumber})
	assert.Equal(t, "1", rows[1].ID)
	assert.Equal(t, 0.0, *rows[1].AmortizationPct)
	assert.Equal(t, 50.0, *rows[2].AmortizationPct)
	assert.Equal(t, 50.0, *rows[3].AmortizationPct)
	// 2025-01-15 es miércoles hábil
	assert.Equal(t, d("2025-01-15"), rows[3].SettlementDate)
	assert.Nil(t, rows[1].IndexValueEnd)

	rows, err = s.Autocomplete(ctx, fixedParams())
	require.NoError(t, err)
	assert.Equal(t, "4", rows[1].ID)
	assert.EqualValues(t, 1, src.holidayCalls.Load())
	assert.EqualValues(t, 0, src.seriesCalls.Load())
}

func TestAutocompleteIncompleteParams(t *testing.T) {
	s := New(&fakeSource{}, 0, nil)
	p := fixedParams()
	p.Periodicity = ""
	rows, err := s.Autocomplete(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.SolveIRR()
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestAutocompleteSourceError(t *testing.T) {
	boom := errors.New("sin conexión")
	s := New(&fakeSource{err: boom}, 0, nil)
	_, err := s.Autocomplete(context.Background(), fixedParams())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Rows())
}

func TestSolveIRR(t *testing.T) {
	s := New(&fakeSource{}, 0, nil)
	_, err := s.Autocomplete(context.Background(), fixedParams())
	require.NoError(t, err)

	res, err := s.SolveIRR()
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Greater(t, res.Rate, 0.05)
	assert.Less(t, res.Rate, 0.25)

	for _, r := range s.Rows() {
		assert.NotNil(t, r.DiscountedCashFlow, r.ID)
	}
	sum := s.Summary()
	require.NotNil(t, sum.IRR)
	assert.Equal(t, res.Rate, sum.IRR.Rate)
	assert.InDelta(t, 0, sum.DiscountedCashFlows, 1e-6)
	assert.Nil(t, sum.ValuationCER)

	price, err := s.PriceForYield(res.Rate)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, price, 1e-4)
	higher, err := s.PriceForYield(res.Rate + 0.05)
	require.NoError(t, err)
	assert.Less(t, higher, price)

	// un nuevo autocompletado invalida la TIR
	_, err = s.Autocomplete(context.Background(), fixedParams())
	require.NoError(t, err)
	assert.Nil(t, s.Summary().IRR)
}

func TestSolveIRRErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		modify func(*Params)
		want   error
	}{
		{"sin fecha de compra", func(p *Params) { p.PurchaseDate = time.Time{} }, ErrMissingPurchaseDate},
		{"sin precio", func(p *Params) { p.Price = nil }, ErrInvestmentFlowMissing},
		{"sin tasa", func(p *Params) { p.TNA = nil }, ErrMissingCouponFlows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeSource{}, 0, nil)
			p := fixedParams()
			tt.modify(&p)
			_, err := s.Autocomplete(ctx, p)
			require.NoError(t, err)
			_, err = s.SolveIRR()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManualOverrides(t *testing.T) {
	s := New(&fakeSource{}, 0, nil)
	rows, err := s.Autocomplete(context.Background(), fixedParams())
	require.NoError(t, err)
	id := rows[2].ID

	require.NoError(t, s.SetManualRate(id, ptr(20)))
	assert.Equal(t, 20.0, *s.Rows()[2].NominalRate)
	require.NoError(t, s.SetManualRate(id, nil))
	assert.Equal(t, 10.0, *s.Rows()[2].NominalRate)

	// el último cupón absorbe todo y los anteriores quedan en cero
	require.NoError(t, s.SetManualAmortization(rows[3].ID, ptr(100)))
	got := s.Rows()
	assert.Equal(t, 100.0, *got[3].AmortizationPct)
	assert.Equal(t, 0.0, *got[2].AmortizationPct)
	assert.Equal(t, 100.0, *got[3].ResidualBalancePct)

	assert.ErrorIs(t, s.SetManualRate("99", ptr(1)), ErrUnknownRow)
}

func TestCERAndVariableRate(t *testing.T) {
	src := &fakeSource{rate: 30}
	s := New(src, 0, nil)
	p := fixedParams()
	p.AdjustCER = true
	p.RateKind = pipeline.RateBADLAR
	p.TNA = nil
	p.Spread = ptr(2)

	rows, err := s.Autocomplete(context.Background(), p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.seriesCalls.Load())
	require.NotNil(t, rows[1].NominalRate)
	assert.InDelta(t, 32, *rows[1].NominalRate, 1e-9)
	require.NotNil(t, rows[1].IndexCoefficient)
	assert.Greater(t, *rows[1].IndexCoefficient, 1.0)

	cer := s.ValuationCER()
	require.NotNil(t, cer)
	assert.InDelta(t, 136.6, *cer, 1e-9)
}

func TestRecomputerKeepsLatest(t *testing.T) {
	s := New(&fakeSource{}, 0, nil)
	updates := make(chan Update, 10)
	r := NewRecomputer(s, 20*time.Millisecond, func(u Update) { updates <- u })
	defer r.Close()

	ctx := context.Background()
	p := fixedParams()
	r.Request(ctx, p)
	p.TNA = ptr(12)
	r.Request(ctx, p)
	p.TNA = ptr(15)
	last := r.Request(ctx, p)

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		assert.Equal(t, last, u.Generation)
		require.Len(t, u.Rows, 4)
		assert.Equal(t, 15.0, *u.Rows[1].NominalRate)
	case <-time.After(2 * time.Second):
		t.Fatal("sin recálculo")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, updates)
}

package fecha

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"15/07/2024", Date(2024, 7, 15), true},
		{"2024-07-15", Date(2024, 7, 15), true},
		{" 2024-07-15 ", Date(2024, 7, 15), true},
		{"2024-07-15T10:00:00Z", Date(2024, 7, 15), true},
		{"31/02/2024", time.Time{}, false},
		{"15-07-2024", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, ok := Parse(c.in)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.True(t, c.want.Equal(got), "got %v", got)
			}
		})
	}
}

func TestParseDayMonth(t *testing.T) {
	d, m, ok := ParseDayMonth("15/07")
	require.True(t, ok)
	assert.Equal(t, 15, d)
	assert.Equal(t, time.July, m)

	_, m, ok = ParseDayMonth("29/02")
	require.True(t, ok)
	assert.Equal(t, time.February, m)

	for _, bad := range []string{"15/7", "15/07/2024", "32/01", "15-07", "", "ab/cd"} {
		_, _, ok := ParseDayMonth(bad)
		assert.False(t, ok, bad)
	}
}

func TestAddMonths(t *testing.T) {
	assert.Equal(t, Date(2024, 2, 29), AddMonths(Date(2024, 1, 31), 1))
	assert.Equal(t, Date(2023, 2, 28), AddMonths(Date(2023, 1, 31), 1))
	assert.Equal(t, Date(2025, 1, 15), AddMonths(Date(2024, 7, 15), 6))
	assert.Equal(t, Date(2023, 12, 15), AddMonths(Date(2024, 1, 15), -1))
	assert.Equal(t, Date(2022, 12, 15), AddMonths(Date(2024, 1, 15), -13))
	// anclado en la fecha original no acumula recortes
	anchor := Date(2024, 1, 31)
	assert.Equal(t, Date(2024, 3, 31), AddMonths(anchor, 2))
}

func TestFechaJSON(t *testing.T) {
	type wrapper struct {
		F Fecha `json:"fecha"`
	}
	b, err := json.Marshal(wrapper{F: Fecha(Date(2024, 3, 5))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fecha":"2024-03-05"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"fecha":"05/03/2024"}`), &w))
	assert.Equal(t, Date(2024, 3, 5), w.F.Time())

	assert.Error(t, json.Unmarshal([]byte(`{"fecha":"marzo"}`), &w))
}

func TestConversions(t *testing.T) {
	assert.Equal(t, "05/03/2024", ToDisplay("2024-03-05"))
	assert.Equal(t, "2024-03-05", ToWire("05/03/2024"))
	assert.Equal(t, "", ToWire("x"))
	assert.Equal(t, Date(2024, 1, 1), Min(time.Time{}, Date(2024, 5, 1), Date(2024, 1, 1)))
	assert.Equal(t, Date(2024, 5, 1), Max(time.Time{}, Date(2024, 5, 1), Date(2024, 1, 1)))
}

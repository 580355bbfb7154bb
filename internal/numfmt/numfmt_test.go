package numfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]struct {
		want float64
		ok   bool
	}{
		"1234.56":   {1234.56, true},
		"1234,56":   {1234.56, true},
		"1.234,56":  {1234.56, true},
		" 98,5 ":    {98.5, true},
		"35%":       {35, true},
		"-0,25":     {-0.25, true},
		"":          {0, false},
		"abc":       {0, false},
		"1,2,3":     {0, false},
		"1.000":     {1000, true},
		"1.000.000": {1e6, true},
		"-1.500":    {-1500, true},
		"1.0250":    {1.025, true},
		"0.125":     {0.125, true},
		"1.025":     {1025, true},
		"12.34.56":  {0, false},
	}
	for in, c := range cases {
		t.Run(in, func(t *testing.T) {
			got, ok := Parse(in)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.InDelta(t, c.want, got, 1e-12)
			}
		})
	}
}

func TestParsePtr(t *testing.T) {
	assert.Nil(t, ParsePtr(""))
	if p := ParsePtr("2,5"); assert.NotNil(t, p) {
		assert.Equal(t, 2.5, *p)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.2346", Format(1.23456, -1))
	assert.Equal(t, "1.23", Format(1.23456, 2))
	assert.Equal(t, "0.333333333333", Format(1.0/3, 40))
	assert.Equal(t, "", FormatPtr(nil, 4))
	assert.Equal(t, "12,5000", FormatLocal(12.5, 4))
	assert.Equal(t, "10.00%", Percent(0.1, 2))
}

package coercer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerce(t *testing.T) {
	c := NewNumericCoercer(DefaultCoercionConfig())

	tests := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{" 7 ", 7},
		{"-3", -3},
		{"1e3", 1000},
		{"(4.5)", -4.5},
		{"12,5", 12.5},
		{"1.234,5", 1234.5},
		{"1 234,5", 1234.5},
		{"1,234.5", 1234.5},
		{"45%", 45},
	}
	for _, tt := range tests {
		if got := c.Coerce(tt.in); got != tt.want {
			t.Errorf("Coerce(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "NA", "n/a", "abc", "#DIV/0!", "12abc", "Inf", "NaN"} {
		if got := c.Coerce(in); !math.IsNaN(got) {
			t.Errorf("Coerce(%q) = %v, want NaN", in, got)
		}
	}
}

func TestAnalyzeColumn(t *testing.T) {
	c := NewNumericCoercer(DefaultCoercionConfig())
	values, a := c.AnalyzeColumn([]string{"1", "", "x", "2.5", "NA"})

	assert.Equal(t, 5, a.Total)
	assert.Equal(t, 2, a.Empty)
	assert.Equal(t, 2, a.Numeric)
	assert.Equal(t, 1, a.Rejected)
	assert.InDelta(t, 2.0/3.0, a.NumericRatio, 1e-12)

	assert.Equal(t, 1.0, values[0])
	assert.True(t, math.IsNaN(values[1]))
	assert.True(t, math.IsNaN(values[2]))
	assert.Equal(t, 2.5, values[3])
}

package coercer

import (
	"math"
	"strconv"
	"strings"
)

// NumericCoercer turns raw spreadsheet cells into numbers. Anything that does
// not parse becomes NaN, the engine's marker for a missing value.
type NumericCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines which spreadsheet conventions are accepted
type CoercionConfig struct {
	AcceptParentheses bool     `json:"accept_parentheses"` // (12) -> -12
	AcceptEuropean    bool     `json:"accept_european"`    // 1.234,5 -> 1234.5
	StripSuffixes     []string `json:"strip_suffixes"`     // units removed before parsing
	MissingTokens     []string `json:"missing_tokens"`     // cells that mean "not measured"
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		AcceptParentheses: true,
		AcceptEuropean:    true,
		StripSuffixes:     []string{"%"},
		MissingTokens:     []string{"na", "n/a", "nan", "null", "none", "-", "#n/a", "#value!", "#div/0!"},
	}
}

// NewNumericCoercer creates a coercer with the given config
func NewNumericCoercer(config CoercionConfig) *NumericCoercer {
	return &NumericCoercer{config: config}
}

// Coerce parses a cell, returning NaN for missing or non-numeric input
func (c *NumericCoercer) Coerce(raw string) float64 {
	v, ok := c.tryParseNumeric(raw)
	if !ok {
		return math.NaN()
	}
	return v
}

// ColumnAnalysis summarises how a column coerced
type ColumnAnalysis struct {
	Total        int     `json:"total"`
	Empty        int     `json:"empty"`
	Numeric      int     `json:"numeric"`
	Rejected     int     `json:"rejected"` // non-empty cells that did not parse
	NumericRatio float64 `json:"numeric_ratio"`
}

// AnalyzeColumn coerces a column and reports the outcome
func (c *NumericCoercer) AnalyzeColumn(cells []string) ([]float64, ColumnAnalysis) {
	out := make([]float64, len(cells))
	a := ColumnAnalysis{Total: len(cells)}
	for i, cell := range cells {
		if c.isMissing(cell) {
			a.Empty++
			out[i] = math.NaN()
			continue
		}
		v, ok := c.tryParseNumeric(cell)
		if !ok {
			a.Rejected++
			out[i] = math.NaN()
			continue
		}
		a.Numeric++
		out[i] = v
	}
	if nonEmpty := a.Total - a.Empty; nonEmpty > 0 {
		a.NumericRatio = float64(a.Numeric) / float64(nonEmpty)
	}
	return out, a
}

func (c *NumericCoercer) isMissing(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return true
	}
	for _, tok := range c.config.MissingTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// tryParseNumeric attempts to parse as numeric with strict rules.
// Handles parentheses for negatives, European decimals and unit suffixes.
func (c *NumericCoercer) tryParseNumeric(raw string) (float64, bool) {
	if c.isMissing(raw) {
		return 0, false
	}
	cleanVal := strings.TrimSpace(raw)

	isNegative := false
	if c.config.AcceptParentheses && strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, suffix := range c.config.StripSuffixes {
		cleanVal = strings.TrimSpace(strings.TrimSuffix(cleanVal, suffix))
	}

	if c.config.AcceptEuropean {
		cleanVal = normalizeSeparators(cleanVal)
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// normalizeSeparators rewrites 1.234,56 and 1 234,56 as 1234.56. A lone
// comma is read as the decimal separator.
func normalizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasPeriod := strings.Contains(s, ".")
	hasSpace := strings.Contains(s, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		after := s[strings.LastIndex(s, ",")+1:]
		if len(after) <= 3 && isDigits(after) && strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, " ", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		s = strings.ReplaceAll(s, ",", "")
		return strings.ReplaceAll(s, " ", "")
	case hasComma:
		return strings.ReplaceAll(s, ",", ".")
	}
	return strings.ReplaceAll(s, " ", "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

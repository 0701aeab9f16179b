package profiling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenoprofile/domain/profile"
	"phenoprofile/internal/testkit"
)

func TestScore_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		mean  float64
		std   float64
		ok    bool
	}{
		{"regular", 12, 10, 2, true},
		{"zero std", 12, 10, 0, false},
		{"undefined std", 12, 10, math.NaN(), false},
		{"missing value", math.NaN(), 10, 2, false},
		{"undefined mean", 12, math.NaN(), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Score(tt.value, tt.mean, tt.std)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok && !math.IsNaN(s) {
				t.Errorf("degenerate score should be NaN, got %f", s)
			}
			// an undefined score never exceeds
			if !ok && Exceeds(s, 0, profile.DirectionBoth) {
				t.Error("undefined score exceeded threshold 0")
			}
		})
	}

	s, _ := Score(12, 10, 2)
	assert.Equal(t, 1.0, s)
}

func TestExceeds_Directions(t *testing.T) {
	tests := []struct {
		score float64
		dir   profile.Direction
		want  bool
	}{
		{1.5, profile.DirectionBoth, true},
		{-1.5, profile.DirectionBoth, true},
		{1.0, profile.DirectionBoth, true}, // boundary is inclusive
		{0.99, profile.DirectionBoth, false},
		{1.5, profile.DirectionAbove, true},
		{-1.5, profile.DirectionAbove, false},
		{-1.0, profile.DirectionBelow, true},
		{1.5, profile.DirectionBelow, false},
	}

	for _, tt := range tests {
		if got := Exceeds(tt.score, 1.0, tt.dir); got != tt.want {
			t.Errorf("Exceeds(%v, 1.0, %q) = %v, want %v", tt.score, tt.dir, got, tt.want)
		}
	}
}

func TestInBand_HalfOpen(t *testing.T) {
	tests := []struct {
		score float64
		dir   profile.Direction
		want  bool
	}{
		{0.7, profile.DirectionBoth, true},
		{-0.9, profile.DirectionBoth, true},
		{1.0, profile.DirectionBoth, false},
		{0.69, profile.DirectionBoth, false},
		{0.8, profile.DirectionAbove, true},
		{-0.8, profile.DirectionAbove, false},
		{-0.7, profile.DirectionBelow, true},
		{-1.0, profile.DirectionBelow, false},
		{math.NaN(), profile.DirectionBoth, false},
	}

	for _, tt := range tests {
		if got := InBand(tt.score, 0.7, 1.0, tt.dir); got != tt.want {
			t.Errorf("InBand(%v, 0.7, 1.0, %q) = %v, want %v", tt.score, tt.dir, got, tt.want)
		}
	}
}

func buildScores(t *testing.T, table *profile.Table) (*ScoreMatrix, profile.Selection) {
	t.Helper()
	sel := selectAll(t, table, 0)
	stats, err := ComputeGroupStats(table, sel)
	require.NoError(t, err)
	scores, err := NewScoreMatrix(table, stats, sel)
	require.NoError(t, err)
	return scores, sel
}

func scaled(table *profile.Table, factor float64) *profile.Table {
	out := *table
	out.Subjects = make([]profile.Subject, len(table.Subjects))
	for i, s := range table.Subjects {
		values := make([]float64, len(s.Values))
		for j, v := range s.Values {
			values[j] = v * factor
		}
		s.Values = values
		out.Subjects[i] = s
	}
	return &out
}

func TestAffectedMatrix_ScaleInvariant(t *testing.T) {
	table := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	original, _ := buildScores(t, table)
	rescaled, _ := buildScores(t, scaled(table, 3.7))

	for _, threshold := range []float64{0.5, 1.0, 1.3, 2.0} {
		a := original.Affected(threshold)
		b := rescaled.Affected(threshold)
		assert.Equal(t, a.Flags, b.Flags, "threshold %v", threshold)
		assert.Equal(t, a.Counts, b.Counts, "threshold %v", threshold)
	}
}

func TestAffectedMatrix_MissingValues(t *testing.T) {
	nan := math.NaN()
	table := &profile.Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    []string{"p1", "p2", "p3", "p4", "p5"},
	}
	a := math.Sqrt(0.9)
	for i := 0; i < 10; i++ {
		v := 10 + a
		if i%2 == 1 {
			v = 10 - a
		}
		table.Subjects = append(table.Subjects, profile.Subject{Group: 0, ID: "c", Values: []float64{v, v, v, v, v}})
	}
	table.Subjects = append(table.Subjects,
		profile.Subject{Group: 1, ID: "gaps", Values: []float64{13, 13, 10, nan, nan}},
		profile.Subject{Group: 1, ID: "full", Values: []float64{13, 13, 10, 10, 10}},
	)

	scores, _ := buildScores(t, table)
	am := scores.Affected(1.0)

	gaps, full := 10, 11
	assert.Equal(t, 2, am.Counts[gaps])
	assert.Equal(t, 3, am.ObservedCounts[gaps])
	assert.Equal(t, []string{"p1", "p2"}, am.Params(gaps))
	assert.Equal(t, am.Counts[full], am.Counts[gaps])
	assert.Equal(t, 5, am.ObservedCounts[full])
	assert.False(t, am.Observed[gaps][3])

	// missing cells are never flagged, even at a zero threshold
	low := scores.Affected(0)
	assert.Equal(t, 3, low.Counts[gaps])
}

func TestAffectedMatrix_ParamsRoundTrip(t *testing.T) {
	table := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).Generate()
	scores, _ := buildScores(t, table)
	am := scores.Affected(1.2)

	for i := range am.Subjects {
		flagged := make(map[string]bool)
		for _, p := range am.Params(i) {
			flagged[p] = true
		}
		count := 0
		for j, p := range am.Parameters {
			if flagged[p] != am.Row(i)[j] {
				t.Fatalf("subject %d: params list disagrees with flags on %s", i, p)
			}
			if flagged[p] {
				count++
			}
		}
		if count != am.Counts[i] {
			t.Errorf("subject %d: rebuilt count %d, want %d", i, count, am.Counts[i])
		}
	}
}

func TestNewScoreMatrix_ZeroControlStd(t *testing.T) {
	table := &profile.Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    []string{"flat", "spread"},
		Subjects: []profile.Subject{
			{Group: 0, ID: "c1", Values: []float64{5, 1}},
			{Group: 0, ID: "c2", Values: []float64{5, 3}},
			{Group: 1, ID: "t1", Values: []float64{50, 30}},
		},
	}
	scores, _ := buildScores(t, table)
	am := scores.Affected(0.5)

	// zero control std: never exceeds, but the value is still observed
	assert.False(t, am.Flags[2][0])
	assert.True(t, am.Flags[2][1])
	assert.Equal(t, 2, am.ObservedCounts[2])
}

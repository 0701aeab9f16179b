package profiling

import (
	"math"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// Score standardizes a raw value against a reference mean and standard
// deviation. ok is false when the value is missing or the reference is
// degenerate (undefined or zero std); such scores never exceed a threshold.
func Score(value, mean, std float64) (float64, bool) {
	if math.IsNaN(value) || math.IsNaN(mean) || math.IsNaN(std) || std == 0 || math.IsInf(std, 0) {
		return math.NaN(), false
	}
	return (value - mean) / std, true
}

// Exceeds applies the directional predicate for a deviation threshold
func Exceeds(score, threshold float64, dir profile.Direction) bool {
	if math.IsNaN(score) {
		return false
	}
	switch dir {
	case profile.DirectionAbove:
		return score >= threshold
	case profile.DirectionBelow:
		return score <= -threshold
	default:
		return math.Abs(score) >= threshold
	}
}

// InBand reports whether a score crosses the medium threshold without
// crossing the high one, i.e. lies in the half-open band [medium, high) on
// the configured side.
func InBand(score, medium, high float64, dir profile.Direction) bool {
	if math.IsNaN(score) {
		return false
	}
	switch dir {
	case profile.DirectionAbove:
		return score >= medium && score < high
	case profile.DirectionBelow:
		return score <= -medium && score > -high
	default:
		a := math.Abs(score)
		return a >= medium && a < high
	}
}

// Reference is the distribution a parameter is standardized against
type Reference struct {
	Mean float64
	Std  float64
}

// ScoreMatrix holds the standardized score of every subject on every
// selected parameter. It is computed once and thresholded many times.
type ScoreMatrix struct {
	Parameters []string
	Directions []profile.Direction
	Subjects   []profile.Subject
	Scores     [][]float64 // NaN where the score is undefined
	Observed   [][]bool    // raw value present
}

// NewScoreMatrix standardizes the subjects of the selected groups against the
// control group's statistics.
func NewScoreMatrix(table *profile.Table, stats *GroupStatsTable, sel profile.Selection) (*ScoreMatrix, error) {
	if err := validateSelection(table, sel); err != nil {
		return nil, err
	}
	refs := make(map[string]Reference, len(sel.Parameters))
	for _, p := range sel.Parameters {
		cs := stats.ControlStats(p)
		refs[p] = Reference{Mean: cs.Mean, Std: cs.Std}
	}

	var subjects []profile.Subject
	for _, s := range table.Subjects {
		if sel.IncludesGroup(s.Group) {
			subjects = append(subjects, s)
		}
	}
	return scoreSubjects(table, subjects, sel.Parameters, refs, sel.Direction), nil
}

func scoreSubjects(table *profile.Table, subjects []profile.Subject, params []string, refs map[string]Reference, direction func(string) profile.Direction) *ScoreMatrix {
	m := &ScoreMatrix{
		Parameters: append([]string(nil), params...),
		Directions: make([]profile.Direction, len(params)),
		Subjects:   subjects,
		Scores:     make([][]float64, len(subjects)),
		Observed:   make([][]bool, len(subjects)),
	}
	cols := make([]int, len(params))
	for j, p := range params {
		cols[j] = table.ParameterIndex(p)
		m.Directions[j] = direction(p)
	}

	for i, s := range subjects {
		m.Scores[i] = make([]float64, len(params))
		m.Observed[i] = make([]bool, len(params))
		for j, p := range params {
			v := s.Value(cols[j])
			m.Observed[i][j] = !math.IsNaN(v)
			ref := refs[p]
			m.Scores[i][j], _ = Score(v, ref.Mean, ref.Std)
		}
	}
	return m
}

// AffectedMatrix flags, per subject and parameter, whether the score crosses
// the threshold. Missing values are neither flagged nor observed.
type AffectedMatrix struct {
	Threshold      float64
	Parameters     []string
	Subjects       []profile.Subject
	Flags          [][]bool
	Observed       [][]bool
	Counts         []int // flagged parameters per subject
	ObservedCounts []int // non-missing parameters per subject
}

// Affected thresholds the score matrix
func (m *ScoreMatrix) Affected(threshold float64) *AffectedMatrix {
	return m.flag(threshold, func(score float64, dir profile.Direction) bool {
		return Exceeds(score, threshold, dir)
	})
}

// Band flags scores in the medium band [medium, high)
func (m *ScoreMatrix) Band(medium, high float64) *AffectedMatrix {
	return m.flag(medium, func(score float64, dir profile.Direction) bool {
		return InBand(score, medium, high, dir)
	})
}

func (m *ScoreMatrix) flag(threshold float64, pred func(float64, profile.Direction) bool) *AffectedMatrix {
	am := &AffectedMatrix{
		Threshold:      threshold,
		Parameters:     m.Parameters,
		Subjects:       m.Subjects,
		Flags:          make([][]bool, len(m.Subjects)),
		Observed:       m.Observed,
		Counts:         make([]int, len(m.Subjects)),
		ObservedCounts: make([]int, len(m.Subjects)),
	}
	for i := range m.Subjects {
		row := make([]bool, len(m.Parameters))
		for j := range m.Parameters {
			if !m.Observed[i][j] {
				continue
			}
			am.ObservedCounts[i]++
			if pred(m.Scores[i][j], m.Directions[j]) {
				row[j] = true
				am.Counts[i]++
			}
		}
		am.Flags[i] = row
	}
	return am
}

// Row returns the flags of subject i
func (a *AffectedMatrix) Row(i int) []bool { return a.Flags[i] }

// Params lists the flagged parameters of subject i in column order
func (a *AffectedMatrix) Params(i int) []string {
	out := []string{}
	for j, f := range a.Flags[i] {
		if f {
			out = append(out, a.Parameters[j])
		}
	}
	return out
}

// groupIndex maps each group to the row indexes of its subjects
func (a *AffectedMatrix) groupIndex() map[core.GroupID][]int {
	idx := make(map[core.GroupID][]int)
	for i, s := range a.Subjects {
		idx[s.Group] = append(idx[s.Group], i)
	}
	return idx
}

// PercentAffected returns the percentage of group g's subjects with at least
// k flagged parameters. Subjects with no observed parameter are left out of
// the denominator; a group without such subjects yields 0.
func (a *AffectedMatrix) PercentAffected(g core.GroupID, k int) float64 {
	return percentAtLeast(a, a.groupIndex()[g], k)
}

func percentAtLeast(a *AffectedMatrix, rows []int, k int) float64 {
	total, hit := 0, 0
	for _, i := range rows {
		if a.ObservedCounts[i] == 0 {
			continue
		}
		total++
		if a.Counts[i] >= k {
			hit++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total) * 100
}

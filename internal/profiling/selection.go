package profiling

import (
	"encoding/json"
	"math"

	"phenoprofile/domain/core"
)

// SelectionConfig holds the candidate-parameter screening thresholds
type SelectionConfig struct {
	MeanDifference      float64 `mapstructure:"mean_difference" validate:"gte=0"`
	DeviationDifference float64 `mapstructure:"deviation_difference" validate:"gte=0,lt=1"`
	Auto                bool    `mapstructure:"auto"`
}

// DefaultSelectionConfig returns 30% mean and deviation screening thresholds
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{MeanDifference: 0.3, DeviationDifference: 0.3}
}

// GroupEvidence is the comparison of one treatment group against control on
// one parameter.
type GroupEvidence struct {
	Group    core.GroupID `json:"group"`
	StdRatio float64      `json:"std_ratio"`
	RelMean  float64      `json:"rel_mean"`
	Admits   bool         `json:"admits"`
}

// MarshalJSON writes an infinite relative mean difference as null
func (e GroupEvidence) MarshalJSON() ([]byte, error) {
	var rel *float64
	if !math.IsInf(e.RelMean, 0) && !math.IsNaN(e.RelMean) {
		rel = &e.RelMean
	}
	return json.Marshal(struct {
		Group    core.GroupID `json:"group"`
		StdRatio float64      `json:"std_ratio"`
		RelMean  *float64     `json:"rel_mean"`
		Admits   bool         `json:"admits"`
	}{e.Group, e.StdRatio, rel, e.Admits})
}

// ParameterAdmission records whether a parameter differs enough from control
// in at least one group to be worth selecting.
type ParameterAdmission struct {
	Parameter string          `json:"parameter"`
	Admitted  bool            `json:"admitted"`
	Evidence  []GroupEvidence `json:"evidence"`
}

// SelectParameters screens every parameter of the stats table. A parameter
// is admitted when, for some treatment group, the ratio of its standard
// deviation to control's falls outside [1-d, 1+d] or its relative mean
// difference exceeds m.
func SelectParameters(stats *GroupStatsTable, cfg SelectionConfig) []ParameterAdmission {
	out := make([]ParameterAdmission, 0, len(stats.Parameters))
	for _, p := range stats.Parameters {
		ctrl := stats.ControlStats(p)
		adm := ParameterAdmission{Parameter: p}
		for _, g := range stats.Groups {
			if g == stats.Control {
				continue
			}
			gs, ok := stats.Get(g, p)
			if !ok {
				continue
			}
			ev := GroupEvidence{
				Group:    g,
				StdRatio: stdRatio(gs.Std, ctrl.Std),
				RelMean:  relativeMeanDifference(gs.Mean, ctrl.Mean),
			}
			ev.Admits = ev.RelMean > cfg.MeanDifference ||
				outsideBand(ev.StdRatio, cfg.DeviationDifference)
			adm.Evidence = append(adm.Evidence, ev)
			adm.Admitted = adm.Admitted || ev.Admits
		}
		out = append(out, adm)
	}
	return out
}

// AdmittedNames lists admitted parameters in column order
func AdmittedNames(admissions []ParameterAdmission) []string {
	var names []string
	for _, a := range admissions {
		if a.Admitted {
			names = append(names, a.Parameter)
		}
	}
	return names
}

// outsideBand applies the deviation test. A zero ratio marks a degenerate
// deviation and carries no evidence either way.
func outsideBand(ratio, d float64) bool {
	if ratio == 0 {
		return false
	}
	return ratio < 1-d || ratio > 1+d
}

// stdRatio is 0 whenever either deviation is undefined or zero
func stdRatio(group, control float64) float64 {
	if math.IsNaN(group) || math.IsNaN(control) || group == 0 || control == 0 {
		return 0
	}
	return group / control
}

func relativeMeanDifference(group, control float64) float64 {
	if math.IsNaN(group) || math.IsNaN(control) || group == control {
		return 0
	}
	if control == 0 {
		return math.Inf(1)
	}
	return math.Abs(group-control) / math.Abs(control)
}

package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// minMediumThreshold is the lowest medium threshold a two-tier run accepts
const minMediumThreshold = 0.5

// ClassifySingle marks a subject Affected when its count at the operating
// threshold reaches the operating k. The matrix must have been computed at
// op.Threshold.
func ClassifySingle(am *AffectedMatrix, op profile.OperatingPoint) ([]profile.SubjectResult, error) {
	if !op.Found {
		return nil, core.ErrNoOptimum
	}
	out := make([]profile.SubjectResult, len(am.Subjects))
	for i, s := range am.Subjects {
		out[i] = profile.SubjectResult{
			Group:         s.Group,
			Subject:       s.ID,
			Affected:      am.Counts[i] >= op.K,
			AffectedCount: am.Counts[i],
			Observed:      am.ObservedCounts[i],
			Params:        am.Params(i),
		}
	}
	return out, nil
}

// TierConfig holds the two-tier overrides. Zero thresholds and nil cut
// points are derived from the operating point and the data.
type TierConfig struct {
	High      float64  `mapstructure:"high" validate:"gte=0"`
	Medium    float64  `mapstructure:"medium" validate:"gte=0"`
	MediumCut *float64 `mapstructure:"medium_cut" validate:"omitempty,gte=0,lte=100"`
	HighCut   *float64 `mapstructure:"high_cut" validate:"omitempty,gte=0,lte=100"`
}

// TwoTierResult is the outcome of a two-tier classification
type TwoTierResult struct {
	High      float64                        `json:"high_threshold"`
	Medium    float64                        `json:"medium_threshold"`
	K         int                            `json:"k"`
	MediumCut float64                        `json:"medium_cut"`
	HighCut   float64                        `json:"high_cut"`
	Subjects  []profile.TwoTierSubjectResult `json:"subjects"`
	Summary   []profile.TierSummary          `json:"summary"`
}

// resolveThresholds applies defaults and checks 0.5 <= medium <= high. The
// derived medium threshold is raised to the floor rather than rejected.
func resolveThresholds(cfg TierConfig, op profile.OperatingPoint) (high, medium float64, err error) {
	high = cfg.High
	if high == 0 {
		high = op.Threshold
	}
	medium = cfg.Medium
	if medium == 0 {
		medium = math.Max(minMediumThreshold, math.Round(0.7*high*100)/100)
	}
	if medium < minMediumThreshold || medium > high {
		return 0, 0, core.NewConfigError(core.ErrInvalidThreshold, "medium",
			fmt.Sprintf("%g (high %g)", medium, high))
	}
	return high, medium, nil
}

// ClassifyTwoTier scores each subject as pctHigh + pctMedium/2 and cuts the
// scores into tiers. High additionally requires at least op.K parameters past
// the high threshold, so every High subject is Affected in single-tier mode.
func ClassifyTwoTier(scores *ScoreMatrix, sel profile.Selection, op profile.OperatingPoint, cfg TierConfig) (*TwoTierResult, error) {
	if !op.Found {
		return nil, core.ErrNoOptimum
	}
	high, medium, err := resolveThresholds(cfg, op)
	if err != nil {
		return nil, err
	}

	highM := scores.Affected(high)
	band := scores.Band(medium, high)

	rows := make([]profile.TwoTierSubjectResult, len(scores.Subjects))
	var controlScores []float64
	for i, s := range scores.Subjects {
		observed := highM.ObservedCounts[i]
		r := profile.TwoTierSubjectResult{
			Group:        s.Group,
			Subject:      s.ID,
			HighCount:    highM.Counts[i],
			MediumCount:  band.Counts[i],
			Observed:     observed,
			ParamsHigh:   highM.Params(i),
			ParamsMedium: band.Params(i),
		}
		if observed > 0 {
			r.PctHigh = float64(r.HighCount) / float64(observed) * 100
			r.PctMedium = float64(r.MediumCount) / float64(observed) * 100
		}
		r.CorrectedScore = r.PctHigh + r.PctMedium/2
		if s.Group == sel.Control {
			controlScores = append(controlScores, r.CorrectedScore)
		}
		rows[i] = r
	}

	mediumCut, highCut, err := resolveCuts(cfg, rows, controlScores)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		r := &rows[i]
		switch {
		case r.CorrectedScore > highCut && r.HighCount >= op.K:
			r.Tier = profile.TierHigh
		case r.CorrectedScore > mediumCut:
			r.Tier = profile.TierMedium
		default:
			r.Tier = profile.TierNotAffected
		}
		r.AffectedHigh = r.Tier == profile.TierHigh
		r.AffectedMedium = r.Tier == profile.TierMedium
	}

	return &TwoTierResult{
		High:      high,
		Medium:    medium,
		K:         op.K,
		MediumCut: mediumCut,
		HighCut:   highCut,
		Subjects:  rows,
		Summary:   summarizeTiers(rows, sel.Groups),
	}, nil
}

// resolveCuts derives the corrected-score cut points. The medium cut is the
// control mean plus one sample std, truncated. The high cut is the truncated
// midrange of the scores above the medium cut, plus one.
func resolveCuts(cfg TierConfig, rows []profile.TwoTierSubjectResult, control []float64) (float64, float64, error) {
	var mediumCut float64
	if cfg.MediumCut != nil {
		mediumCut = *cfg.MediumCut
	} else {
		mean, err := stats.Mean(control)
		if err != nil {
			mean = 0
		}
		sd, err := stats.StandardDeviationSample(control)
		if err != nil || math.IsNaN(sd) || math.IsInf(sd, 0) {
			sd = 0
		}
		mediumCut = math.Min(math.Floor(mean+sd), 100)
	}

	var highCut float64
	if cfg.HighCut != nil {
		highCut = *cfg.HighCut
	} else {
		var above []float64
		for _, r := range rows {
			if r.CorrectedScore > mediumCut {
				above = append(above, r.CorrectedScore)
			}
		}
		highCut = mediumCut
		if len(above) > 0 {
			hi, _ := stats.Max(above)
			lo, _ := stats.Min(above)
			highCut = math.Min(math.Floor((hi+lo)/2)+1, 100)
		}
	}

	if mediumCut < 0 || highCut < mediumCut || highCut > 100 {
		return 0, 0, core.NewConfigError(core.ErrInvalidCutPoint, "cuts",
			fmt.Sprintf("medium %g high %g", mediumCut, highCut))
	}
	return mediumCut, highCut, nil
}

func summarizeTiers(rows []profile.TwoTierSubjectResult, groups []core.GroupID) []profile.TierSummary {
	out := make([]profile.TierSummary, 0, len(groups))
	for _, g := range groups {
		sum := profile.TierSummary{Group: g}
		var high, med, none int
		for _, r := range rows {
			if r.Group != g {
				continue
			}
			sum.Subjects++
			switch r.Tier {
			case profile.TierHigh:
				high++
			case profile.TierMedium:
				med++
			default:
				none++
			}
		}
		if sum.Subjects > 0 {
			n := float64(sum.Subjects)
			sum.High = float64(high) / n * 100
			sum.Medium = float64(med) / n * 100
			sum.NotAffected = float64(none) / n * 100
		}
		out = append(out, sum)
	}
	return out
}

// Record returns the part of the result stored with a run
func (r *TwoTierResult) Record() *profile.TwoTierRecord {
	return &profile.TwoTierRecord{
		High:      r.High,
		Medium:    r.Medium,
		MediumCut: r.MediumCut,
		HighCut:   r.HighCut,
		Subjects:  r.Subjects,
		Summary:   r.Summary,
	}
}

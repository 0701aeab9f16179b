package profiling

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// SweepConfig controls the deviation threshold grid and candidate filtering
type SweepConfig struct {
	MinThreshold   float64 `mapstructure:"min_threshold" validate:"gt=0"`
	MaxThreshold   float64 `mapstructure:"max_threshold" validate:"gtefield=MinThreshold"`
	Step           float64 `mapstructure:"step" validate:"gt=0"`
	MinCount       int     `mapstructure:"min_count" validate:"gte=1"`
	ControlCeiling float64 `mapstructure:"control_ceiling" validate:"gte=0,lte=100"`
	Workers        int     `mapstructure:"workers" validate:"gte=0"`
}

// DefaultSweepConfig sweeps 0.5 to 2.0 SD in steps of 0.1, counts from 2 and
// a 20% control ceiling.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MinThreshold:   0.5,
		MaxThreshold:   2.0,
		Step:           0.1,
		MinCount:       2,
		ControlCeiling: 20,
	}
}

func (c SweepConfig) validate() error {
	if c.Step <= 0 || c.MinThreshold <= 0 || c.MaxThreshold < c.MinThreshold {
		return core.NewConfigError(core.ErrInvalidThreshold, "sweep",
			fmt.Sprintf("%g..%g step %g", c.MinThreshold, c.MaxThreshold, c.Step))
	}
	if c.MinCount < 1 {
		return core.NewConfigError(core.ErrTooFewParameters, "min_count", c.MinCount)
	}
	if c.ControlCeiling < 0 || c.ControlCeiling > 100 {
		return core.NewConfigError(core.ErrInvalidThreshold, "control_ceiling", c.ControlCeiling)
	}
	return nil
}

// ThresholdGrid lists the swept thresholds in ascending order. Values are
// derived from integer step indexes so the grid ends exactly on MaxThreshold.
func ThresholdGrid(cfg SweepConfig) []float64 {
	if cfg.Step <= 0 || cfg.MaxThreshold < cfg.MinThreshold {
		return nil
	}
	n := int(math.Floor((cfg.MaxThreshold-cfg.MinThreshold)/cfg.Step + 1e-9))
	grid := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		grid = append(grid, roundTo(cfg.MinThreshold+float64(i)*cfg.Step, 1e9))
	}
	return grid
}

func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// SweepResult is the full percent-affected curve plus the chosen operating point
type SweepResult struct {
	Thresholds []float64              `json:"thresholds"`
	Counts     []int                  `json:"counts"`
	Curve      []profile.CurvePoint   `json:"curve"`
	Candidates []profile.Candidate    `json:"candidates"`
	Best       profile.OperatingPoint `json:"operating_point"`
	percents   map[curveKey]float64
	scores     *ScoreMatrix
}

type curveKey struct {
	threshold int
	group     core.GroupID
	k         int
}

// Matrix recomputes the affected matrix at any threshold
func (r *SweepResult) Matrix(threshold float64) *AffectedMatrix {
	return r.scores.Affected(threshold)
}

// Percent looks up a curve cell. ok is false for thresholds off the grid or
// counts outside the swept range.
func (r *SweepResult) Percent(threshold float64, g core.GroupID, k int) (float64, bool) {
	for i, t := range r.Thresholds {
		if math.Abs(t-threshold) < 1e-9 {
			v, ok := r.percents[curveKey{threshold: i, group: g, k: k}]
			return v, ok
		}
	}
	return 0, false
}

// Sweep evaluates PercentAffected for every (threshold, group, k) on the grid
// and folds the control-limited candidates into the best operating point.
// Thresholds are evaluated concurrently; the fold runs in ascending
// (threshold, k) order so ties go to the lowest threshold, then lowest k.
func Sweep(ctx context.Context, scores *ScoreMatrix, sel profile.Selection, cfg SweepConfig) (*SweepResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := len(scores.Parameters)
	if p < cfg.MinCount {
		return nil, core.NewConfigError(core.ErrTooFewParameters, "parameters", p)
	}

	thresholds := ThresholdGrid(cfg)
	counts := make([]int, 0, p-cfg.MinCount+1)
	for k := cfg.MinCount; k <= p; k++ {
		counts = append(counts, k)
	}

	// slots[i][g][j] = percent of group g with count >= counts[j] at thresholds[i]
	slots := make([]map[core.GroupID][]float64, len(thresholds))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, t := range thresholds {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			slots[i] = percentCurve(scores.Affected(t), sel.Groups, counts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &SweepResult{
		Thresholds: thresholds,
		Counts:     counts,
		percents:   make(map[curveKey]float64, len(thresholds)*len(sel.Groups)*len(counts)),
		scores:     scores,
	}
	best := profile.OperatingPoint{}
	for i, t := range thresholds {
		for _, g := range sel.Groups {
			for j, k := range counts {
				pct := slots[i][g][j]
				res.percents[curveKey{threshold: i, group: g, k: k}] = pct
				res.Curve = append(res.Curve, profile.CurvePoint{Threshold: t, Group: g, K: k, Percent: pct})
			}
		}
		for j, k := range counts {
			c, ok := candidate(slots[i], sel, t, k, j, cfg.ControlCeiling)
			if !ok {
				continue
			}
			res.Candidates = append(res.Candidates, c)
			best = bestOf(best, c)
		}
	}
	res.Best = best
	return res, nil
}

// percentCurve computes, for each group, the percent of subjects reaching
// each count at one threshold.
func percentCurve(am *AffectedMatrix, groups []core.GroupID, counts []int) map[core.GroupID][]float64 {
	index := am.groupIndex()
	out := make(map[core.GroupID][]float64, len(groups))
	for _, g := range groups {
		row := make([]float64, len(counts))
		for j, k := range counts {
			row[j] = percentAtLeast(am, index[g], k)
		}
		out[g] = row
	}
	return out
}

// candidate builds the (t, k) row when the control group stays under the
// ceiling. MaxDiff ranges over every selected group, control included, so it
// is never negative.
func candidate(slot map[core.GroupID][]float64, sel profile.Selection, t float64, k, j int, ceiling float64) (profile.Candidate, bool) {
	ctrl := slot[sel.Control][j]
	if ctrl > ceiling {
		return profile.Candidate{}, false
	}
	maxDiff := 0.0
	for _, g := range sel.Groups {
		if d := slot[g][j] - ctrl; d > maxDiff {
			maxDiff = d
		}
	}
	return profile.Candidate{
		Threshold:      t,
		K:              k,
		ControlPercent: ctrl,
		MaxDiff:        maxDiff,
		Weighted:       maxDiff * float64(k),
	}, true
}

// bestOf is the fold step. Only a strictly greater weighted score replaces
// the accumulator.
func bestOf(acc profile.OperatingPoint, c profile.Candidate) profile.OperatingPoint {
	if c.Weighted > acc.Weighted {
		return profile.OperatingPoint{
			Threshold: c.Threshold,
			K:         c.K,
			MaxDiff:   c.MaxDiff,
			Weighted:  c.Weighted,
			Found:     true,
		}
	}
	return acc
}

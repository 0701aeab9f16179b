package profiling

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// PairedConfig controls the band-multiplier sweep of the pre/post design
// Baseline nil means the first group in the table.
type PairedConfig struct {
	Baseline      *core.GroupID `mapstructure:"baseline"`
	MinMultiplier float64       `mapstructure:"min_multiplier" validate:"gt=0"`
	MaxMultiplier float64       `mapstructure:"max_multiplier" validate:"gtefield=MinMultiplier"`
	Step          float64       `mapstructure:"step" validate:"gt=0"`
	Separator     string        `mapstructure:"separator"`
	Workers       int           `mapstructure:"workers" validate:"gte=0"`
}

// DefaultPairedConfig sweeps bands of 1.0 to 2.0 SD around the mean difference
func DefaultPairedConfig() PairedConfig {
	return PairedConfig{
		MinMultiplier: 1.0,
		MaxMultiplier: 2.0,
		Step:          0.1,
		Separator:     DefaultTaskSeparator,
	}
}

// BaselineGroup returns the configured baseline, or the group of the first
// row when none is set.
func (c PairedConfig) BaselineGroup(table *profile.Table) core.GroupID {
	if c.Baseline != nil {
		return *c.Baseline
	}
	if ids := table.GroupIDs(); len(ids) > 0 {
		return ids[0]
	}
	return 0
}

// CountPercent is the share of subjects with at least K affected parameters
type CountPercent struct {
	K       int     `json:"k"`
	Percent float64 `json:"percent"`
}

// PairedLevel is the outcome for one band multiplier
type PairedLevel struct {
	Multiplier     float64                  `json:"multiplier"`
	Tallies        []profile.ParameterTally `json:"tallies"`
	PercentByCount []CountPercent           `json:"percent_by_count"`
	Tasks          *TaskAggregation         `json:"tasks"`
	Matrix         *AffectedMatrix          `json:"-"`
}

// PairedResult holds every multiplier level of a paired sweep
type PairedResult struct {
	References []profile.GroupStats `json:"references"`
	Tasks      []profile.TaskGroup  `json:"tasks"`
	Levels     []PairedLevel        `json:"levels"`
}

// Level finds the result for a multiplier on the grid
func (r *PairedResult) Level(m float64) (PairedLevel, bool) {
	for _, l := range r.Levels {
		if roundTo(l.Multiplier, 1e9) == roundTo(m, 1e9) {
			return l, true
		}
	}
	return PairedLevel{}, false
}

// PairedSweep standardizes each paired difference against the mean and
// sample std of that parameter's differences and, for every multiplier m,
// flags differences at least m std from the mean. Parameters default to every
// column when none are selected.
func PairedSweep(ctx context.Context, diffs *profile.Table, params profile.ParameterConfig, cfg PairedConfig) (*PairedResult, error) {
	if err := diffs.Validate(); err != nil {
		return nil, err
	}
	if cfg.Step <= 0 || cfg.MinMultiplier <= 0 || cfg.MaxMultiplier < cfg.MinMultiplier {
		return nil, core.NewConfigError(core.ErrInvalidThreshold, "multiplier",
			fmt.Sprintf("%g..%g step %g", cfg.MinMultiplier, cfg.MaxMultiplier, cfg.Step))
	}

	names := params.SelectedNames()
	if len(names) == 0 {
		names = append([]string(nil), diffs.Parameters...)
	}
	for _, n := range names {
		if diffs.ParameterIndex(n) < 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownParameter, n)
		}
	}

	tasks := GroupTasks(names, cfg.Separator)
	if len(tasks) > MaxTasks {
		return nil, core.NewConfigError(core.ErrTooManyTasks, "tasks", len(tasks))
	}

	refs := make(map[string]Reference, len(names))
	res := &PairedResult{Tasks: tasks}
	for _, p := range names {
		var values []float64
		col := diffs.ParameterIndex(p)
		for _, s := range diffs.Subjects {
			values = append(values, s.Value(col))
		}
		gs := describe(0, p, observed(values))
		refs[p] = Reference{Mean: gs.Mean, Std: gs.Std}
		res.References = append(res.References, gs)
	}
	scores := scoreSubjects(diffs, diffs.Subjects, names, refs, params.DirectionOf)

	multipliers := ThresholdGrid(SweepConfig{MinThreshold: cfg.MinMultiplier, MaxThreshold: cfg.MaxMultiplier, Step: cfg.Step})
	res.Levels = make([]PairedLevel, len(multipliers))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, m := range multipliers {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			level, err := pairedLevel(scores, tasks, m)
			if err != nil {
				return err
			}
			res.Levels[i] = level
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func pairedLevel(scores *ScoreMatrix, tasks []profile.TaskGroup, m float64) (PairedLevel, error) {
	am := scores.Affected(m)
	agg, err := AggregateTasks(am, tasks)
	if err != nil {
		return PairedLevel{}, err
	}

	byCount := make([]CountPercent, len(am.Parameters))
	for k := 1; k <= len(am.Parameters); k++ {
		byCount[k-1] = CountPercent{K: k, Percent: percentOfRows(am, k)}
	}

	return PairedLevel{
		Multiplier:     m,
		Tallies:        tally(scores, am),
		PercentByCount: byCount,
		Tasks:          agg,
		Matrix:         am,
	}, nil
}

// tally splits each parameter's observed differences into flagged above the
// mean, flagged below it, and within the band.
func tally(scores *ScoreMatrix, am *AffectedMatrix) []profile.ParameterTally {
	out := make([]profile.ParameterTally, len(am.Parameters))
	for j, p := range am.Parameters {
		t := profile.ParameterTally{Parameter: p}
		for i := range am.Subjects {
			if !scores.Observed[i][j] {
				continue
			}
			t.Count++
			switch {
			case am.Flags[i][j] && scores.Scores[i][j] > 0:
				t.Above++
			case am.Flags[i][j]:
				t.Below++
			default:
				t.Within++
			}
		}
		out[j] = t
	}
	return out
}

// percentOfRows is the share of all difference rows with at least k flagged
// parameters. Rows with nothing observed stay in the denominator.
func percentOfRows(am *AffectedMatrix, k int) float64 {
	if len(am.Counts) == 0 {
		return 0
	}
	hit := 0
	for _, c := range am.Counts {
		if c >= k {
			hit++
		}
	}
	return float64(hit) / float64(len(am.Counts)) * 100
}

package profile

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"phenoprofile/domain/core"
)

// GroupStats holds the mean and sample standard deviation of one parameter
// within one group. Std is NaN (undefined) when fewer than two values are
// observed; it is never silently replaced by zero.
type GroupStats struct {
	Group     core.GroupID `json:"group"`
	Parameter string       `json:"parameter"`
	Count     int          `json:"count"`
	Mean      float64      `json:"mean"`
	Std       float64      `json:"std"`
}

// Defined reports whether the statistics can be used as a standardization reference
func (g GroupStats) Defined() bool {
	return g.Count > 0 && !math.IsNaN(g.Mean) && !math.IsNaN(g.Std)
}

// MarshalJSON writes undefined statistics as null
func (g GroupStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Group     core.GroupID `json:"group"`
		Parameter string       `json:"parameter"`
		Count     int          `json:"count"`
		Mean      *float64     `json:"mean"`
		Std       *float64     `json:"std"`
	}{g.Group, g.Parameter, g.Count, finiteOrNil(g.Mean), finiteOrNil(g.Std)})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// OperatingPoint is the (deviation threshold, parameter count) pair chosen by
// the sweep. The zero value with Found == false is the "no viable separation"
// sentinel and must not be used to classify subjects.
type OperatingPoint struct {
	Threshold float64 `json:"threshold"`
	K         int     `json:"k"`
	MaxDiff   float64 `json:"max_diff"`
	Weighted  float64 `json:"weighted"`
	Found     bool    `json:"found"`
}

// CurvePoint is one cell of the percent-affected curve, keyed explicitly by
// (threshold, group, k).
type CurvePoint struct {
	Threshold float64      `json:"threshold"`
	Group     core.GroupID `json:"group"`
	K         int          `json:"k"`
	Percent   float64      `json:"percent"`
}

// Candidate is a (threshold, k) row that passed the control ceiling
type Candidate struct {
	Threshold      float64 `json:"threshold"`
	K              int     `json:"k"`
	ControlPercent float64 `json:"control_percent"`
	MaxDiff        float64 `json:"max_diff"`
	Weighted       float64 `json:"weighted"`
}

// SubjectResult is a row of the single-tier result table
type SubjectResult struct {
	Group         core.GroupID `json:"group"`
	Subject       string       `json:"subject"`
	Affected      bool         `json:"affected"`
	AffectedCount int          `json:"affected_count"`
	Observed      int          `json:"observed"`
	Params        []string     `json:"params"`
}

// Tier is the two-level classification outcome
type Tier string

const (
	TierNotAffected Tier = "not_affected"
	TierMedium      Tier = "medium"
	TierHigh        Tier = "high"
)

// TwoTierSubjectResult is a row of the two-tier result table
type TwoTierSubjectResult struct {
	Group          core.GroupID `json:"group"`
	Subject        string       `json:"subject"`
	Tier           Tier         `json:"tier"`
	AffectedHigh   bool         `json:"affected_high"`
	AffectedMedium bool         `json:"affected_med"`
	HighCount      int          `json:"high_count"`
	MediumCount    int          `json:"medium_count"`
	Observed       int          `json:"observed"`
	PctHigh        float64      `json:"pct_high"`
	PctMedium      float64      `json:"pct_medium"`
	CorrectedScore float64      `json:"corrected_score"`
	ParamsHigh     []string     `json:"params_high"`
	ParamsMedium   []string     `json:"params_med"`
}

// TierSummary gives per-group tier percentages
type TierSummary struct {
	Group       core.GroupID `json:"group"`
	Subjects    int          `json:"subjects"`
	High        float64      `json:"high"`
	Medium      float64      `json:"medium"`
	NotAffected float64      `json:"not_affected"`
}

// TaskGroup is a set of parameters sharing a name prefix
type TaskGroup struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
}

// TaskCombination is a non-empty set of tasks with the share of subjects
// affected in every one of them.
type TaskCombination struct {
	Tasks   []string `json:"tasks"`
	Flagged int      `json:"flagged"`
	Percent float64  `json:"percent"`
}

// Name renders the combination the way exported tables label it
func (c TaskCombination) Name() string {
	return "affected_" + strings.Join(c.Tasks, "_")
}

// ParameterTally counts paired differences above, below and inside the band
type ParameterTally struct {
	Parameter string `json:"parameter"`
	Count     int    `json:"count"`
	Above     int    `json:"above"`
	Below     int    `json:"below"`
	Within    int    `json:"within"`
}

// Affected is the number of differences outside the band
func (t ParameterTally) Affected() int { return t.Above + t.Below }

// TwoTierRecord is the stored outcome of a two-tier classification
type TwoTierRecord struct {
	High      float64                `json:"high_threshold"`
	Medium    float64                `json:"medium_threshold"`
	MediumCut float64                `json:"medium_cut"`
	HighCut   float64                `json:"high_cut"`
	Subjects  []TwoTierSubjectResult `json:"subjects"`
	Summary   []TierSummary          `json:"summary"`
}

// RunRecord is what gets persisted for a completed single- or two-tier run.
// TwoTier is nil for single-tier runs.
type RunRecord struct {
	ID         core.RunID      `json:"id" db:"id"`
	Dataset    string          `json:"dataset" db:"dataset"`
	DataHash   core.Hash       `json:"data_hash" db:"data_hash"`
	Control    core.GroupID    `json:"control" db:"control_group"`
	Groups     []core.GroupID  `json:"groups" db:"-"`
	Parameters []string        `json:"parameters" db:"-"`
	Operating  OperatingPoint  `json:"operating_point" db:"-"`
	Subjects   []SubjectResult `json:"subjects" db:"-"`
	TwoTier    *TwoTierRecord  `json:"two_tier,omitempty" db:"-"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

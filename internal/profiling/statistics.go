package profiling

import (
	"fmt"
	"math"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"

	"gonum.org/v1/gonum/stat"
)

// StatsKey addresses one (group, parameter) cell of a GroupStatsTable
type StatsKey struct {
	Group     core.GroupID
	Parameter string
}

// GroupStatsTable holds per-group, per-parameter mean and standard deviation
type GroupStatsTable struct {
	Control    core.GroupID
	Groups     []core.GroupID
	Parameters []string
	cells      map[StatsKey]profile.GroupStats
}

// Get returns the statistics of one cell
func (t *GroupStatsTable) Get(g core.GroupID, param string) (profile.GroupStats, bool) {
	gs, ok := t.cells[StatsKey{Group: g, Parameter: param}]
	return gs, ok
}

// ControlStats returns the control group's statistics for a parameter. The
// result is undefined (NaN mean/std) when the parameter was not computed.
func (t *GroupStatsTable) ControlStats(param string) profile.GroupStats {
	if gs, ok := t.Get(t.Control, param); ok {
		return gs
	}
	return profile.GroupStats{Group: t.Control, Parameter: param, Mean: math.NaN(), Std: math.NaN()}
}

// Rows flattens the table, groups in selection order then parameters in column order
func (t *GroupStatsTable) Rows() []profile.GroupStats {
	rows := make([]profile.GroupStats, 0, len(t.Groups)*len(t.Parameters))
	for _, g := range t.Groups {
		for _, p := range t.Parameters {
			if gs, ok := t.Get(g, p); ok {
				rows = append(rows, gs)
			}
		}
	}
	return rows
}

// ResolveSelection turns the external group and parameter configuration into
// the set the engine runs on. An empty groups list selects every group in the
// table. The control group is always included.
func ResolveSelection(table *profile.Table, control core.GroupID, groups []core.GroupID, params profile.ParameterConfig) (profile.Selection, error) {
	if err := table.Validate(); err != nil {
		return profile.Selection{}, err
	}
	if !table.HasGroup(control) {
		return profile.Selection{}, core.NewConfigError(core.ErrNoControlGroup, "control", control.Label())
	}

	available := table.GroupIDs()
	if len(groups) == 0 {
		groups = available
	}

	resolved := []core.GroupID{control}
	for _, g := range groups {
		if g == control || !table.HasGroup(g) {
			continue
		}
		if !containsGroup(resolved, g) {
			resolved = append(resolved, g)
		}
	}
	if len(resolved) < 2 {
		return profile.Selection{}, core.NewConfigError(core.ErrTooFewGroups, "groups", len(resolved))
	}

	names := params.SelectedNames()
	if len(names) == 0 {
		return profile.Selection{}, core.ErrNoParameters
	}
	for _, n := range names {
		if table.ParameterIndex(n) < 0 {
			return profile.Selection{}, fmt.Errorf("%w: %s", core.ErrUnknownParameter, n)
		}
	}

	return profile.Selection{
		Control:    control,
		Groups:     resolved,
		Parameters: names,
		Directions: params.Directions(),
	}, nil
}

// ComputeGroupStats computes mean and sample standard deviation for every
// selected (group, parameter) pair. Missing values are skipped.
func ComputeGroupStats(table *profile.Table, sel profile.Selection) (*GroupStatsTable, error) {
	if err := validateSelection(table, sel); err != nil {
		return nil, err
	}

	out := &GroupStatsTable{
		Control:    sel.Control,
		Groups:     append([]core.GroupID(nil), sel.Groups...),
		Parameters: append([]string(nil), sel.Parameters...),
		cells:      make(map[StatsKey]profile.GroupStats, len(sel.Groups)*len(sel.Parameters)),
	}

	for _, p := range sel.Parameters {
		col := table.ParameterIndex(p)
		for _, g := range sel.Groups {
			values := observed(table.Column(g, col))
			out.cells[StatsKey{Group: g, Parameter: p}] = describe(g, p, values)
		}
	}

	return out, nil
}

// describe summarises the observed values of one cell. With fewer than two
// values the standard deviation is undefined.
func describe(g core.GroupID, param string, values []float64) profile.GroupStats {
	gs := profile.GroupStats{Group: g, Parameter: param, Count: len(values), Mean: math.NaN(), Std: math.NaN()}
	switch len(values) {
	case 0:
	case 1:
		gs.Mean = values[0]
	default:
		gs.Mean, gs.Std = stat.MeanStdDev(values, nil)
	}
	return gs
}

// observed drops missing values
func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func validateSelection(table *profile.Table, sel profile.Selection) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if !table.HasGroup(sel.Control) {
		return core.NewConfigError(core.ErrNoControlGroup, "control", sel.Control.Label())
	}
	if !containsGroup(sel.Groups, sel.Control) {
		return core.NewConfigError(core.ErrNoControlGroup, "groups", "control group not selected")
	}
	if len(sel.Groups) < 2 {
		return core.NewConfigError(core.ErrTooFewGroups, "groups", len(sel.Groups))
	}
	if len(sel.Parameters) == 0 {
		return core.ErrNoParameters
	}
	for _, p := range sel.Parameters {
		if table.ParameterIndex(p) < 0 {
			return fmt.Errorf("%w: %s", core.ErrUnknownParameter, p)
		}
	}
	return nil
}

func containsGroup(groups []core.GroupID, g core.GroupID) bool {
	for _, id := range groups {
		if id == g {
			return true
		}
	}
	return false
}

// PairedDifferences computes, for every subject, the difference between each
// of its rows and the row before it (in table order), keeping only rows that
// do not belong to the baseline group. The result has one row per
// (subject, post measurement) and shares the parameter columns of the input.
func PairedDifferences(table *profile.Table, baseline core.GroupID) (*profile.Table, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if !table.HasGroup(baseline) {
		return nil, core.NewConfigError(core.ErrNoControlGroup, "baseline", baseline.Label())
	}

	previous := make(map[string]profile.Subject)
	diffs := &profile.Table{
		GroupColumn:   table.GroupColumn,
		SubjectColumn: table.SubjectColumn,
		Parameters:    append([]string(nil), table.Parameters...),
	}

	for _, s := range table.Subjects {
		prev, seen := previous[s.ID]
		previous[s.ID] = s
		// a first measurement has nothing to pair with
		if s.Group == baseline || !seen {
			continue
		}
		values := make([]float64, len(s.Values))
		for i := range values {
			values[i] = s.Values[i] - prev.Values[i]
		}
		diffs.Subjects = append(diffs.Subjects, profile.Subject{Group: s.Group, ID: s.ID, Values: values})
	}

	if len(diffs.Subjects) == 0 {
		return nil, core.ErrNoPairedRows
	}
	return diffs, nil
}

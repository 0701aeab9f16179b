package profile

import (
	"math"
	"strings"

	"phenoprofile/domain/core"
)

// Subject is one row of the data file: an animal measured on every parameter.
// Missing or non-numeric cells are stored as NaN.
type Subject struct {
	Group  core.GroupID `json:"group"`
	ID     string       `json:"subject"`
	Values []float64    `json:"values"`
}

// Value returns the raw value of parameter column i
func (s Subject) Value(i int) float64 {
	if i < 0 || i >= len(s.Values) {
		return math.NaN()
	}
	return s.Values[i]
}

// Table is the ingested data file. Column names are lower-cased at ingestion;
// the first two columns are the group and subject identifiers.
type Table struct {
	GroupColumn   string    `json:"group_column"`
	SubjectColumn string    `json:"subject_column"`
	Parameters    []string  `json:"parameters"`
	Subjects      []Subject `json:"subjects"`
}

// Validate fails fast on tables that cannot be analysed
func (t *Table) Validate() error {
	if t == nil || t.GroupColumn == "" || t.SubjectColumn == "" {
		return core.NewMissingColumnsError("group and subject identifier columns are required")
	}
	if len(t.Parameters) == 0 {
		return core.NewMissingColumnsError("no parameter columns after the identifier columns")
	}
	if len(t.Subjects) == 0 {
		return core.ErrEmptyTable
	}
	for _, s := range t.Subjects {
		if len(s.Values) != len(t.Parameters) {
			return core.NewMissingColumnsError("subject " + s.ID + " has a ragged row")
		}
	}
	return nil
}

// ParameterIndex returns the column index of a parameter, or -1
func (t *Table) ParameterIndex(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, p := range t.Parameters {
		if p == name {
			return i
		}
	}
	return -1
}

// GroupIDs lists the groups in order of first appearance
func (t *Table) GroupIDs() []core.GroupID {
	seen := make(map[core.GroupID]bool)
	var ids []core.GroupID
	for _, s := range t.Subjects {
		if !seen[s.Group] {
			seen[s.Group] = true
			ids = append(ids, s.Group)
		}
	}
	return ids
}

// HasGroup reports whether any subject belongs to g
func (t *Table) HasGroup(g core.GroupID) bool {
	for _, s := range t.Subjects {
		if s.Group == g {
			return true
		}
	}
	return false
}

// Column returns the values of parameter column i for the subjects of group g
func (t *Table) Column(g core.GroupID, i int) []float64 {
	var out []float64
	for _, s := range t.Subjects {
		if s.Group == g {
			out = append(out, s.Value(i))
		}
	}
	return out
}

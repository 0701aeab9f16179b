package profile

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"phenoprofile/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return &Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    []string{"of_distance", "of_center", "ep_open"},
		Subjects: []Subject{
			{Group: 1, ID: "a1", Values: []float64{1, 2, 3}},
			{Group: 0, ID: "c1", Values: []float64{4, math.NaN(), 6}},
			{Group: 1, ID: "a2", Values: []float64{7, 8, 9}},
		},
	}
}

func TestTableValidate(t *testing.T) {
	require.NoError(t, sampleTable().Validate())

	noParams := sampleTable()
	noParams.Parameters = nil
	assert.True(t, errors.Is(noParams.Validate(), core.ErrMissingColumns))

	noSubject := sampleTable()
	noSubject.SubjectColumn = ""
	assert.True(t, errors.Is(noSubject.Validate(), core.ErrMissingColumns))

	empty := sampleTable()
	empty.Subjects = nil
	assert.True(t, errors.Is(empty.Validate(), core.ErrEmptyTable))

	ragged := sampleTable()
	ragged.Subjects[0].Values = []float64{1}
	assert.True(t, errors.Is(ragged.Validate(), core.ErrMissingColumns))
}

func TestTableAccessors(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []core.GroupID{1, 0}, tbl.GroupIDs())
	assert.Equal(t, 1, tbl.ParameterIndex("OF_Center"))
	assert.Equal(t, -1, tbl.ParameterIndex("missing"))
	assert.Equal(t, []float64{1, 7}, tbl.Column(1, 0))
	assert.True(t, tbl.HasGroup(0))
	assert.False(t, tbl.HasGroup(5))
	assert.True(t, math.IsNaN(tbl.Subjects[0].Value(10)))
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		hasError bool
	}{
		{"both", DirectionBoth, false},
		{"", DirectionBoth, false},
		{"above control", DirectionAbove, false},
		{"Above-Control", DirectionAbove, false},
		{"below_control", DirectionBelow, false},
		{"down", DirectionBelow, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.input)
		if tt.hasError {
			assert.Error(t, err, tt.input)
			assert.True(t, errors.Is(err, core.ErrUnknownDirection))
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got, tt.input)
	}
}

func TestParameterConfig(t *testing.T) {
	cfg := DefaultParameterConfig([]string{"a", "b", "c"})
	assert.Empty(t, cfg.SelectedNames())

	cfg[1].Direction = DirectionBelow
	selected := cfg.WithSelected("a", "c")
	assert.Equal(t, []string{"a", "c"}, selected.SelectedNames())
	assert.Empty(t, cfg.SelectedNames(), "WithSelected must not mutate the receiver")
	assert.Equal(t, DirectionBelow, selected.DirectionOf("b"))
	assert.Equal(t, DirectionBoth, selected.DirectionOf("unknown"))
}

func TestSelectionTreatmentGroups(t *testing.T) {
	sel := Selection{Control: 0, Groups: []core.GroupID{0, 1, 2}}
	assert.Equal(t, []core.GroupID{1, 2}, sel.TreatmentGroups())
	assert.True(t, sel.IncludesGroup(2))
	assert.Equal(t, DirectionBoth, sel.Direction("anything"))
}

func TestGroupStatsJSONWritesNullForUndefined(t *testing.T) {
	gs := GroupStats{Group: 1, Parameter: "x", Count: 1, Mean: 3, Std: math.NaN()}
	raw, err := json.Marshal(gs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"group":1,"parameter":"x","count":1,"mean":3,"std":null}`, string(raw))
	assert.False(t, gs.Defined())
}

func TestTaskCombinationName(t *testing.T) {
	c := TaskCombination{Tasks: []string{"of", "ep"}}
	assert.Equal(t, "affected_of_ep", c.Name())
}

package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

func TestGroupTasks(t *testing.T) {
	tasks := GroupTasks([]string{"of_dist", "rr_lat", "of_rear", "grip", "rr_falls_total"}, "")

	require.Len(t, tasks, 3)
	assert.Equal(t, profile.TaskGroup{Name: "of", Parameters: []string{"of_dist", "of_rear"}}, tasks[0])
	assert.Equal(t, profile.TaskGroup{Name: "rr", Parameters: []string{"rr_lat", "rr_falls_total"}}, tasks[1])
	assert.Equal(t, profile.TaskGroup{Name: "grip", Parameters: []string{"grip"}}, tasks[2])

	dotted := GroupTasks([]string{"of.dist", "of.rear"}, ".")
	require.Len(t, dotted, 1)
	assert.Equal(t, "of", dotted[0].Name)
}

func TestEnumerateCombinations(t *testing.T) {
	combos, err := EnumerateCombinations(3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2}, {0, 1}, {0, 2}, {1, 2}, {0, 1, 2}}, combos)

	for n := 0; n <= 10; n++ {
		combos, err := EnumerateCombinations(n)
		require.NoError(t, err)
		if len(combos) != (1<<n)-1 {
			t.Errorf("n=%d: got %d combinations, want %d", n, len(combos), (1<<n)-1)
		}
	}

	_, err = EnumerateCombinations(MaxTasks + 1)
	assert.ErrorIs(t, err, core.ErrTooManyTasks)
}

func TestAggregateTasks(t *testing.T) {
	am := &AffectedMatrix{
		Parameters: []string{"a_1", "a_2", "b_1", "c_1"},
		Subjects: []profile.Subject{
			{ID: "s1"}, {ID: "s2"}, {ID: "s3"}, {ID: "s4"},
		},
		Flags: [][]bool{
			{true, true, true, false},
			{false, true, false, true},
			{false, false, true, true},
			{false, false, false, false},
		},
	}
	tasks := GroupTasks(am.Parameters, "_")

	agg, err := AggregateTasks(am, tasks)
	require.NoError(t, err)
	require.Len(t, agg.Combinations, 7)

	assert.Equal(t, []int{2, 1, 0}, agg.Counts[0])
	assert.Equal(t, []bool{true, true, false}, agg.Flags[0])

	// size-one combinations carry the task's own flag
	for c := 0; c < len(tasks); c++ {
		for i := range am.Subjects {
			_, flagged := agg.SubjectCombination(i, c)
			assert.Equal(t, agg.Flags[i][c], flagged)
		}
	}

	byName := make(map[string]profile.TaskCombination)
	for _, c := range agg.Combinations {
		byName[c.Name()] = c
	}
	assert.Equal(t, 2, byName["affected_a"].Flagged)
	assert.Equal(t, 50.0, byName["affected_a"].Percent)
	assert.Equal(t, 50.0, byName["affected_c"].Percent)
	assert.Equal(t, 1, byName["affected_a_b"].Flagged)
	assert.Equal(t, 25.0, byName["affected_b_c"].Percent)
	assert.Equal(t, 0, byName["affected_a_b_c"].Flagged)
	assert.Equal(t, 0.0, byName["affected_a_b_c"].Percent)

	count, all := agg.SubjectCombination(0, 3) // a, b
	assert.Equal(t, 3, count)
	assert.True(t, all)
}

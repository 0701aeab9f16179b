package profiling

import (
	"strings"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// MaxTasks bounds combination enumeration at 2^16 - 1 subsets
const MaxTasks = 16

// DefaultTaskSeparator splits "task_measure" parameter names
const DefaultTaskSeparator = "_"

// GroupTasks groups parameters by the prefix before the first separator, in
// order of first appearance. A name without the separator is its own task.
func GroupTasks(params []string, sep string) []profile.TaskGroup {
	if sep == "" {
		sep = DefaultTaskSeparator
	}
	var tasks []profile.TaskGroup
	index := make(map[string]int)
	for _, p := range params {
		name, _, _ := strings.Cut(p, sep)
		i, ok := index[name]
		if !ok {
			i = len(tasks)
			index[name] = i
			tasks = append(tasks, profile.TaskGroup{Name: name})
		}
		tasks[i].Parameters = append(tasks[i].Parameters, p)
	}
	return tasks
}

// EnumerateCombinations lists every non-empty subset of n task indexes, by
// size and then lexicographically within a size.
func EnumerateCombinations(n int) ([][]int, error) {
	if n > MaxTasks {
		return nil, core.NewConfigError(core.ErrTooManyTasks, "tasks", n)
	}
	var out [][]int
	for size := 1; size <= n; size++ {
		combo := make([]int, size)
		for i := range combo {
			combo[i] = i
		}
		for {
			out = append(out, append([]int(nil), combo...))
			// advance the rightmost index that still has room
			i := size - 1
			for i >= 0 && combo[i] == n-size+i {
				i--
			}
			if i < 0 {
				break
			}
			combo[i]++
			for j := i + 1; j < size; j++ {
				combo[j] = combo[j-1] + 1
			}
		}
	}
	return out, nil
}

// TaskAggregation holds per-subject task counts and flags plus the
// combination table.
type TaskAggregation struct {
	Tasks        []profile.TaskGroup       `json:"tasks"`
	Subjects     []profile.Subject         `json:"-"`
	Counts       [][]int                   `json:"-"` // [subject][task]
	Flags        [][]bool                  `json:"-"`
	Combinations []profile.TaskCombination `json:"combinations"`
	combos       [][]int
}

// AggregateTasks sums the affected flags of each task's parameters per
// subject and evaluates every task combination. A subject counts towards a
// combination only when every member task has at least one flagged
// parameter; percentages are over all subjects of the matrix.
func AggregateTasks(am *AffectedMatrix, tasks []profile.TaskGroup) (*TaskAggregation, error) {
	combos, err := EnumerateCombinations(len(tasks))
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(am.Parameters))
	for j, p := range am.Parameters {
		cols[p] = j
	}

	agg := &TaskAggregation{
		Tasks:    tasks,
		Subjects: am.Subjects,
		Counts:   make([][]int, len(am.Subjects)),
		Flags:    make([][]bool, len(am.Subjects)),
		combos:   combos,
	}
	for i := range am.Subjects {
		counts := make([]int, len(tasks))
		flags := make([]bool, len(tasks))
		for t, task := range tasks {
			for _, p := range task.Parameters {
				if j, ok := cols[p]; ok && am.Flags[i][j] {
					counts[t]++
				}
			}
			flags[t] = counts[t] > 0
		}
		agg.Counts[i] = counts
		agg.Flags[i] = flags
	}

	agg.Combinations = make([]profile.TaskCombination, len(combos))
	for c, combo := range combos {
		names := make([]string, len(combo))
		for n, t := range combo {
			names[n] = tasks[t].Name
		}
		flagged := 0
		for i := range am.Subjects {
			if _, ok := agg.SubjectCombination(i, c); ok {
				flagged++
			}
		}
		tc := profile.TaskCombination{Tasks: names, Flagged: flagged}
		if n := len(am.Subjects); n > 0 {
			tc.Percent = float64(flagged) / float64(n) * 100
		}
		agg.Combinations[c] = tc
	}
	return agg, nil
}

// SubjectCombination returns subject i's summed count over the tasks of
// combination c and whether every one of those tasks is flagged.
func (a *TaskAggregation) SubjectCombination(i, c int) (int, bool) {
	count, all := 0, true
	for _, t := range a.combos[c] {
		count += a.Counts[i][t]
		all = all && a.Flags[i][t]
	}
	return count, all
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/internal/testkit"
)

func writeCohort(t *testing.T, dir string, table *profile.Table) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, testkit.WriteCSV(&buf, table))
	path := filepath.Join(dir, "cohort.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROFILER_DATABASE_URL", "")
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestProfileCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeCohort(t, dir, testkit.SeparationScenario())
	out := filepath.Join(dir, "out")

	require.NoError(t, execute(t, "profile", data, "--params", "p1,p2,p3", "--tiers", "--output-dir", out))

	for _, name := range []string{
		"cohort_group_stats.csv",
		"cohort_percent_curve.csv",
		"cohort_final_table_1_levels.csv",
		"cohort_final_table_2_levels.csv",
		"cohort_report.html",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
}

func TestProfileCommand_XLSX(t *testing.T) {
	dir := t.TempDir()
	data := writeCohort(t, dir, testkit.SeparationScenario())
	out := filepath.Join(dir, "out")

	require.NoError(t, execute(t, "profile", data, "--params", "p1,p2,p3", "--format", "xlsx", "--report", "md", "--output-dir", out))
	assert.FileExists(t, filepath.Join(out, "cohort_results.xlsx"))
	assert.FileExists(t, filepath.Join(out, "cohort_report.md"))
}

func TestProfileCommand_NoOptimum(t *testing.T) {
	table := testkit.SeparationScenario()
	for i := 10; i < 20; i++ {
		table.Subjects[i].Values = append([]float64(nil), table.Subjects[i-10].Values...)
	}
	dir := t.TempDir()
	data := writeCohort(t, dir, table)

	err := execute(t, "profile", data, "--params", "p1,p2,p3", "--report", "none", "--output-dir", filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, core.ErrNoOptimum)
	assert.FileExists(t, filepath.Join(dir, "out", "cohort_percent_curve.csv"))
}

func TestPreferencesInitThenProfile(t *testing.T) {
	dir := t.TempDir()
	data := writeCohort(t, dir, testkit.SeparationScenario())

	require.NoError(t, execute(t, "preferences", "init", data))
	assert.FileExists(t, filepath.Join(dir, "cohort_direction_preferences.csv"))

	require.NoError(t, execute(t, "profile", data, "--report", "none", "--output-dir", filepath.Join(dir, "out")))
}

func TestPairedCommand(t *testing.T) {
	dir := t.TempDir()
	data := writeCohort(t, dir, testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).GeneratePaired())
	out := filepath.Join(dir, "out")

	require.NoError(t, execute(t, "paired", data, "--output-dir", out))
	assert.FileExists(t, filepath.Join(out, "cohort_tallies_1.5.csv"))
	assert.FileExists(t, filepath.Join(out, "cohort_combinations_2.csv"))
}

func TestParameterFlags(t *testing.T) {
	cfg, err := parameterFlags(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = parameterFlags([]string{"Distance"}, []string{"distance=below", "rearing=above"})
	require.NoError(t, err)
	assert.Equal(t, profile.ParameterConfig{
		{Name: "distance", Selected: true, Direction: profile.DirectionBelow},
		{Name: "rearing", Direction: profile.DirectionAbove},
	}, cfg)

	_, err = parameterFlags(nil, []string{"distance"})
	assert.ErrorIs(t, err, core.ErrUnknownDirection)
}

package app

import (
	"context"
	"fmt"
	"sync"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/ports"
)

type tableReader struct {
	table *profile.Table
	err   error
}

func (r tableReader) ReadTable(ctx context.Context) (*profile.Table, error) {
	return r.table, r.err
}

type memoryRuns struct {
	mu   sync.Mutex
	runs map[core.RunID]*profile.RunRecord
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: make(map[core.RunID]*profile.RunRecord)}
}

func (m *memoryRuns) SaveRun(ctx context.Context, run *profile.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRuns) GetRun(ctx context.Context, id core.RunID) (*profile.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return run, nil
}

func (m *memoryRuns) ListRuns(ctx context.Context, filters ports.RunFilters) ([]profile.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []profile.RunRecord
	for _, r := range m.runs {
		if filters.Dataset == "" || r.Dataset == filters.Dataset {
			out = append(out, *r)
		}
	}
	return out, nil
}

type memoryPrefs struct {
	cfgs map[string]profile.ParameterConfig
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{cfgs: make(map[string]profile.ParameterConfig)}
}

func (m *memoryPrefs) LoadPreferences(ctx context.Context, dataset string, params []string) (profile.ParameterConfig, error) {
	cfg, ok := m.cfgs[dataset]
	if !ok {
		return nil, core.ErrPreferencesMissing
	}
	return cfg, nil
}

func (m *memoryPrefs) SavePreferences(ctx context.Context, dataset string, cfg profile.ParameterConfig) error {
	m.cfgs[dataset] = cfg
	return nil
}

// recordingWriter remembers which tables were written
type recordingWriter struct {
	tables []string
}

func (w *recordingWriter) WriteStats(ctx context.Context, rows []profile.GroupStats) error {
	w.tables = append(w.tables, "stats")
	return nil
}

func (w *recordingWriter) WriteCurve(ctx context.Context, points []profile.CurvePoint) error {
	w.tables = append(w.tables, "curve")
	return nil
}

func (w *recordingWriter) WriteSubjects(ctx context.Context, rows []profile.SubjectResult) error {
	w.tables = append(w.tables, "subjects")
	return nil
}

func (w *recordingWriter) WriteTwoTier(ctx context.Context, rows []profile.TwoTierSubjectResult) error {
	w.tables = append(w.tables, "two_tier")
	return nil
}

func (w *recordingWriter) WriteTallies(ctx context.Context, multiplier float64, rows []profile.ParameterTally) error {
	w.tables = append(w.tables, fmt.Sprintf("tallies_%g", multiplier))
	return nil
}

func (w *recordingWriter) WriteCombinations(ctx context.Context, multiplier float64, rows []profile.TaskCombination) error {
	w.tables = append(w.tables, fmt.Sprintf("combinations_%g", multiplier))
	return nil
}

func (w *recordingWriter) Close() error { return nil }

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"phenoprofile/adapters/report"
	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/internal"
	"phenoprofile/internal/profiling"
	"phenoprofile/ports"
)

// ProfilingService runs the single- and two-tier deviation analysis end to end
type ProfilingService struct {
	runs   ports.RunRepository    // nil disables run persistence
	prefs  ports.PreferencesStore // nil means requests carry their own parameters
	logger *internal.Logger
}

// NewProfilingService creates a profiling service; both stores are optional
func NewProfilingService(runs ports.RunRepository, prefs ports.PreferencesStore) *ProfilingService {
	return &ProfilingService{
		runs:   runs,
		prefs:  prefs,
		logger: internal.DefaultLogger,
	}
}

// AnalysisRequest defines the inputs of one analysis run
type AnalysisRequest struct {
	Dataset    string
	Reader     ports.TableReader
	Control    core.GroupID
	Groups     []core.GroupID          // empty selects every group in the data
	Parameters profile.ParameterConfig // nil loads stored preferences
	TwoTier    bool
	Selection  profiling.SelectionConfig
	Sweep      profiling.SweepConfig
	Tiers      profiling.TierConfig
	Writer     ports.ResultWriter // optional
}

// AnalysisResult contains the complete output of a run
type AnalysisResult struct {
	RunID      core.RunID                     `json:"run_id"`
	Dataset    string                         `json:"dataset"`
	DataHash   core.Hash                      `json:"data_hash"`
	Selection  profile.Selection              `json:"selection"`
	Admissions []profiling.ParameterAdmission `json:"admissions,omitempty"`
	Stats      []profile.GroupStats           `json:"stats"`
	Sweep      *profiling.SweepResult         `json:"sweep"`
	Subjects   []profile.SubjectResult        `json:"subjects,omitempty"`
	TwoTier    *profiling.TwoTierResult       `json:"two_tier,omitempty"`
	RuntimeMs  int64                          `json:"runtime_ms"`
}

// Summary condenses the result for the run report
func (r *AnalysisResult) Summary() report.Summary {
	s := report.Summary{
		RunID:     r.RunID,
		Dataset:   r.Dataset,
		Selection: r.Selection,
		Groups:    report.Outcomes(r.Subjects),
	}
	if r.Sweep != nil {
		s.Operating = r.Sweep.Best
		s.Candidates = len(r.Sweep.Candidates)
	}
	if r.TwoTier != nil {
		s.Tiers = r.TwoTier.Summary
		s.MediumCut = r.TwoTier.MediumCut
		s.HighCut = r.TwoTier.HighCut
	}
	return s
}

// Analyze reads the data, sweeps the thresholds and classifies every subject.
// When the sweep finds no operating point the partial result (statistics and
// percent curve) is returned together with an error wrapping core.ErrNoOptimum.
func (s *ProfilingService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	startTime := time.Now()
	runID := core.NewRunID()
	logger := s.logger.With("run_id", runID.String())

	table, err := req.Reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	params, err := s.parameterConfig(ctx, req.Dataset, req.Parameters, table.Parameters)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		RunID:    runID,
		Dataset:  req.Dataset,
		DataHash: TableHash(table),
	}

	if req.Selection.Auto {
		admissions, err := screenParameters(table, req.Control, req.Groups, req.Selection)
		if err != nil {
			return nil, err
		}
		result.Admissions = admissions
		admitted := profiling.AdmittedNames(admissions)
		params = params.WithSelected(admitted...)
		logger.Info("[ProfilingService] auto-selection admitted %d of %d parameters", len(admitted), len(table.Parameters))
	}

	sel, err := profiling.ResolveSelection(table, req.Control, req.Groups, params)
	if err != nil {
		return nil, err
	}
	result.Selection = sel

	stats, err := profiling.ComputeGroupStats(table, sel)
	if err != nil {
		return nil, err
	}
	result.Stats = stats.Rows()

	scores, err := profiling.NewScoreMatrix(table, stats, sel)
	if err != nil {
		return nil, err
	}

	sweep, err := profiling.Sweep(ctx, scores, sel, req.Sweep)
	if err != nil {
		return nil, fmt.Errorf("threshold sweep failed: %w", err)
	}
	result.Sweep = sweep

	if req.Writer != nil {
		if err := req.Writer.WriteStats(ctx, result.Stats); err != nil {
			return nil, fmt.Errorf("failed to write statistics: %w", err)
		}
		if err := req.Writer.WriteCurve(ctx, sweep.Curve); err != nil {
			return nil, fmt.Errorf("failed to write percent curve: %w", err)
		}
	}

	best := sweep.Best
	if !best.Found {
		logger.Warn("[ProfilingService] no operating point keeps control at or below %.0f%%", req.Sweep.ControlCeiling)
		result.RuntimeMs = time.Since(startTime).Milliseconds()
		return result, fmt.Errorf("%s: %w", req.Dataset, core.ErrNoOptimum)
	}
	logger.Info("[ProfilingService] operating point threshold=%.2f k=%d max_diff=%.1f", best.Threshold, best.K, best.MaxDiff)

	subjects, err := profiling.ClassifySingle(sweep.Matrix(best.Threshold), best)
	if err != nil {
		return nil, err
	}
	result.Subjects = subjects

	if req.TwoTier {
		tiers, err := profiling.ClassifyTwoTier(scores, sel, best, req.Tiers)
		if err != nil {
			return nil, err
		}
		result.TwoTier = tiers
	}

	if req.Writer != nil {
		if err := req.Writer.WriteSubjects(ctx, subjects); err != nil {
			return nil, fmt.Errorf("failed to write subjects: %w", err)
		}
		if result.TwoTier != nil {
			if err := req.Writer.WriteTwoTier(ctx, result.TwoTier.Subjects); err != nil {
				return nil, fmt.Errorf("failed to write two-tier table: %w", err)
			}
		}
	}

	if s.runs != nil {
		record := &profile.RunRecord{
			ID:         runID,
			Dataset:    req.Dataset,
			DataHash:   result.DataHash,
			Control:    sel.Control,
			Groups:     sel.Groups,
			Parameters: sel.Parameters,
			Operating:  best,
			Subjects:   subjects,
			CreatedAt:  time.Now().UTC(),
		}
		if result.TwoTier != nil {
			record.TwoTier = result.TwoTier.Record()
		}
		if err := s.runs.SaveRun(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
	}

	result.RuntimeMs = time.Since(startTime).Milliseconds()
	logger.Info("[ProfilingService] classified %d subjects in %dms", len(subjects), result.RuntimeMs)
	return result, nil
}

// GetRun loads a stored run
func (s *ProfilingService) GetRun(ctx context.Context, id core.RunID) (*profile.RunRecord, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("%w: persistence disabled", core.ErrRunNotFound)
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns lists stored runs, newest first
func (s *ProfilingService) ListRuns(ctx context.Context, filters ports.RunFilters) ([]profile.RunRecord, error) {
	if s.runs == nil {
		return []profile.RunRecord{}, nil
	}
	return s.runs.ListRuns(ctx, filters)
}

// InitPreferences stores a starting preferences file for a dataset: every
// parameter selected with direction "both".
func (s *ProfilingService) InitPreferences(ctx context.Context, dataset string, reader ports.TableReader) (profile.ParameterConfig, error) {
	if s.prefs == nil {
		return nil, errors.New("no preferences store configured")
	}
	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	cfg := profile.DefaultParameterConfig(table.Parameters).WithSelected(table.Parameters...)
	if err := s.prefs.SavePreferences(ctx, dataset, cfg); err != nil {
		return nil, err
	}
	s.logger.Info("[ProfilingService] stored preferences for %s (%d parameters)", dataset, len(cfg))
	return cfg, nil
}

// parameterConfig picks the request's parameters, falling back to stored
// preferences and then to nothing selected.
func (s *ProfilingService) parameterConfig(ctx context.Context, dataset string, given profile.ParameterConfig, columns []string) (profile.ParameterConfig, error) {
	if given != nil {
		return alignParameters(given, columns), nil
	}
	if s.prefs == nil {
		return profile.DefaultParameterConfig(columns), nil
	}
	cfg, err := s.prefs.LoadPreferences(ctx, dataset, columns)
	if errors.Is(err, core.ErrPreferencesMissing) {
		s.logger.Debug("[ProfilingService] no stored preferences for %s", dataset)
		return profile.DefaultParameterConfig(columns), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return cfg, nil
}

// alignParameters keeps the table's column order and carries settings over
// by name. Settings for columns not in the table stay so selection can
// report them as unknown.
func alignParameters(given profile.ParameterConfig, columns []string) profile.ParameterConfig {
	out := profile.DefaultParameterConfig(columns)
	for i, c := range out {
		if s, ok := given.Lookup(c.Name); ok {
			if s.Direction == "" {
				s.Direction = profile.DirectionBoth
			}
			out[i] = s
		}
	}
	for _, s := range given {
		if _, ok := out.Lookup(s.Name); !ok {
			out = append(out, s)
		}
	}
	return out
}

// screenParameters runs the candidate screening over every column
func screenParameters(table *profile.Table, control core.GroupID, groups []core.GroupID, cfg profiling.SelectionConfig) ([]profiling.ParameterAdmission, error) {
	all := profile.DefaultParameterConfig(table.Parameters).WithSelected(table.Parameters...)
	sel, err := profiling.ResolveSelection(table, control, groups, all)
	if err != nil {
		return nil, err
	}
	stats, err := profiling.ComputeGroupStats(table, sel)
	if err != nil {
		return nil, err
	}
	return profiling.SelectParameters(stats, cfg), nil
}

// TableHash fingerprints the table contents
func TableHash(table *profile.Table) core.Hash {
	var b strings.Builder
	b.WriteString(table.GroupColumn)
	b.WriteByte(',')
	b.WriteString(table.SubjectColumn)
	for _, p := range table.Parameters {
		b.WriteByte(',')
		b.WriteString(p)
	}
	b.WriteByte('\n')
	for _, s := range table.Subjects {
		b.WriteString(strconv.Itoa(int(s.Group)))
		b.WriteByte(',')
		b.WriteString(s.ID)
		for _, v := range s.Values {
			b.WriteByte(',')
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	return core.NewHash([]byte(b.String()))
}

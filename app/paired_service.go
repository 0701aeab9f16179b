package app

import (
	"context"
	"fmt"
	"time"

	"phenoprofile/domain/profile"
	"phenoprofile/internal"
	"phenoprofile/internal/profiling"
	"phenoprofile/ports"
)

// PairedService runs the pre/post difference analysis
type PairedService struct {
	prefs  ports.PreferencesStore
	logger *internal.Logger
}

// NewPairedService creates a paired service; prefs may be nil
func NewPairedService(prefs ports.PreferencesStore) *PairedService {
	return &PairedService{prefs: prefs, logger: internal.DefaultLogger}
}

// PairedRequest defines the inputs of a paired analysis
type PairedRequest struct {
	Dataset    string
	Reader     ports.TableReader
	Parameters profile.ParameterConfig // nil loads stored preferences
	Config     profiling.PairedConfig
	Writer     ports.ResultWriter // optional
}

// PairedAnalysis is the paired sweep plus the differences it ran on
type PairedAnalysis struct {
	Dataset   string                  `json:"dataset"`
	Pairs     int                     `json:"pairs"`
	Result    *profiling.PairedResult `json:"result"`
	RuntimeMs int64                   `json:"runtime_ms"`
}

// Analyze computes paired differences and sweeps the band multipliers
func (s *PairedService) Analyze(ctx context.Context, req PairedRequest) (*PairedAnalysis, error) {
	startTime := time.Now()

	table, err := req.Reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	profiler := &ProfilingService{prefs: s.prefs, logger: s.logger}
	params, err := profiler.parameterConfig(ctx, req.Dataset, req.Parameters, table.Parameters)
	if err != nil {
		return nil, err
	}

	baseline := req.Config.BaselineGroup(table)
	diffs, err := profiling.PairedDifferences(table, baseline)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("[PairedService] %d paired differences against baseline %s", len(diffs.Subjects), baseline.Label())

	result, err := profiling.PairedSweep(ctx, diffs, params, req.Config)
	if err != nil {
		return nil, err
	}

	if req.Writer != nil {
		if err := req.Writer.WriteStats(ctx, result.References); err != nil {
			return nil, fmt.Errorf("failed to write references: %w", err)
		}
		for _, level := range result.Levels {
			if err := req.Writer.WriteTallies(ctx, level.Multiplier, level.Tallies); err != nil {
				return nil, fmt.Errorf("failed to write tallies: %w", err)
			}
			if err := req.Writer.WriteCombinations(ctx, level.Multiplier, level.Tasks.Combinations); err != nil {
				return nil, fmt.Errorf("failed to write combinations: %w", err)
			}
		}
	}

	analysis := &PairedAnalysis{
		Dataset:   req.Dataset,
		Pairs:     len(diffs.Subjects),
		Result:    result,
		RuntimeMs: time.Since(startTime).Milliseconds(),
	}
	s.logger.Info("[PairedService] %s: %d pairs, %d tasks, %d levels in %dms",
		req.Dataset, analysis.Pairs, len(result.Tasks), len(result.Levels), analysis.RuntimeMs)
	return analysis, nil
}

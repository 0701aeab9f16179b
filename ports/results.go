package ports

import (
	"context"

	"phenoprofile/domain/profile"
)

// ResultWriter exports result tables. Close flushes anything buffered.
type ResultWriter interface {
	WriteStats(ctx context.Context, rows []profile.GroupStats) error
	WriteCurve(ctx context.Context, points []profile.CurvePoint) error
	WriteSubjects(ctx context.Context, rows []profile.SubjectResult) error
	WriteTwoTier(ctx context.Context, rows []profile.TwoTierSubjectResult) error
	WriteTallies(ctx context.Context, multiplier float64, rows []profile.ParameterTally) error
	WriteCombinations(ctx context.Context, multiplier float64, rows []profile.TaskCombination) error
	Close() error
}

package ports

import (
	"context"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// RunFilters for querying runs
type RunFilters struct {
	Dataset string
	Limit   int
	Offset  int
}

// RunRepository stores completed single-tier runs
type RunRepository interface {
	SaveRun(ctx context.Context, run *profile.RunRecord) error
	GetRun(ctx context.Context, id core.RunID) (*profile.RunRecord, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]profile.RunRecord, error)
}

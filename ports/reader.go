package ports

import (
	"context"

	"phenoprofile/domain/profile"
)

// TableReader loads a subject table. Implementations lower-case the header,
// read the group and subject identifiers from the first two columns and
// coerce every other cell to a number, storing NaN for missing or
// non-numeric cells.
type TableReader interface {
	ReadTable(ctx context.Context) (*profile.Table, error)
}

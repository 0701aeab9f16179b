package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	apperrors "phenoprofile/internal/errors"
	"phenoprofile/ports"
)

// Open connects to PostgreSQL and applies pending migrations
func Open(ctx context.Context, url string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to connect", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, apperrors.DatabaseError("failed to migrate", err)
	}
	return db, nil
}

// runRow is the stored shape of a run; slices travel as JSONB
type runRow struct {
	ID         string         `db:"id"`
	Dataset    string         `db:"dataset"`
	DataHash   string         `db:"data_hash"`
	Control    int            `db:"control_group"`
	Groups     []byte         `db:"groups"`
	Parameters []byte         `db:"parameters"`
	Operating  []byte         `db:"operating"`
	Subjects   []byte         `db:"subjects"`
	TwoTier    sql.NullString `db:"two_tier"`
	CreatedAt  time.Time      `db:"created_at"`
}

func toRow(run *profile.RunRecord) (*runRow, error) {
	row := &runRow{
		ID:        run.ID.String(),
		Dataset:   run.Dataset,
		DataHash:  run.DataHash.String(),
		Control:   int(run.Control),
		CreatedAt: run.CreatedAt,
	}
	var err error
	if row.Groups, err = json.Marshal(run.Groups); err != nil {
		return nil, fmt.Errorf("failed to marshal groups: %w", err)
	}
	if row.Parameters, err = json.Marshal(run.Parameters); err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if row.Operating, err = json.Marshal(run.Operating); err != nil {
		return nil, fmt.Errorf("failed to marshal operating point: %w", err)
	}
	if row.Subjects, err = json.Marshal(run.Subjects); err != nil {
		return nil, fmt.Errorf("failed to marshal subjects: %w", err)
	}
	if run.TwoTier != nil {
		b, err := json.Marshal(run.TwoTier)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal two-tier result: %w", err)
		}
		row.TwoTier = sql.NullString{String: string(b), Valid: true}
	}
	return row, nil
}

func (r *runRow) toRecord() (*profile.RunRecord, error) {
	run := &profile.RunRecord{
		ID:        core.RunID(r.ID),
		Dataset:   r.Dataset,
		DataHash:  core.Hash(r.DataHash),
		Control:   core.GroupID(r.Control),
		CreatedAt: r.CreatedAt,
	}
	if err := json.Unmarshal(r.Groups, &run.Groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal groups: %w", err)
	}
	if err := json.Unmarshal(r.Parameters, &run.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(r.Operating, &run.Operating); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operating point: %w", err)
	}
	if err := json.Unmarshal(r.Subjects, &run.Subjects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subjects: %w", err)
	}
	if r.TwoTier.Valid {
		run.TwoTier = &profile.TwoTierRecord{}
		if err := json.Unmarshal([]byte(r.TwoTier.String), run.TwoTier); err != nil {
			return nil, fmt.Errorf("failed to unmarshal two-tier result: %w", err)
		}
	}
	return run, nil
}

// runRepository implements ports.RunRepository
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `id, dataset, data_hash, control_group, groups, parameters, operating, subjects, two_tier, created_at`

// SaveRun inserts a run; saving the same ID twice replaces the stored copy
func (r *runRepository) SaveRun(ctx context.Context, run *profile.RunRecord) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	row, err := toRow(run)
	if err != nil {
		return err
	}

	query := `INSERT INTO profiling_runs (` + runColumns + `) VALUES (
		:id, :dataset, :data_hash, :control_group, :groups, :parameters, :operating, :subjects, :two_tier, :created_at
	) ON CONFLICT (id) DO UPDATE SET
		dataset = EXCLUDED.dataset, data_hash = EXCLUDED.data_hash, control_group = EXCLUDED.control_group,
		groups = EXCLUDED.groups, parameters = EXCLUDED.parameters, operating = EXCLUDED.operating,
		subjects = EXCLUDED.subjects, two_tier = EXCLUDED.two_tier`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return apperrors.DatabaseError("failed to save run", err)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (r *runRepository) GetRun(ctx context.Context, id core.RunID) (*profile.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `SELECT `+runColumns+` FROM profiling_runs WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, apperrors.DatabaseError("failed to get run", err)
	}
	return row.toRecord()
}

// ListRuns returns runs newest first, optionally for one dataset
func (r *runRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]profile.RunRecord, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []runRow
	query := `SELECT ` + runColumns + ` FROM profiling_runs
		WHERE ($1 = '' OR dataset = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, filters.Dataset, limit, filters.Offset); err != nil {
		return nil, apperrors.DatabaseError("failed to list runs", err)
	}

	runs := make([]profile.RunRecord, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	apperrors "phenoprofile/internal/errors"
	"phenoprofile/ports"
)

type preferenceRow struct {
	Dataset   string `db:"dataset"`
	Position  int    `db:"position"`
	Parameter string `db:"parameter"`
	Direction string `db:"direction"`
	Selected  bool   `db:"selected"`
}

// preferencesRepository implements ports.PreferencesStore
type preferencesRepository struct {
	db *sqlx.DB
}

// NewPreferencesRepository creates a database-backed preferences store
func NewPreferencesRepository(db *sqlx.DB) ports.PreferencesStore {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) LoadPreferences(ctx context.Context, dataset string, params []string) (profile.ParameterConfig, error) {
	var rows []preferenceRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT dataset, position, parameter, direction, selected
		FROM direction_preferences WHERE dataset = $1 ORDER BY position`, dataset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load preferences", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrPreferencesMissing, dataset)
	}
	return alignPreferences(rows, params)
}

// alignPreferences orders stored rows by the data columns
func alignPreferences(rows []preferenceRow, params []string) (profile.ParameterConfig, error) {
	stored := make(map[string]profile.ParameterSetting, len(rows))
	for _, row := range rows {
		dir, err := profile.ParseDirection(row.Direction)
		if err != nil {
			return nil, fmt.Errorf("preferences for %s: %w", row.Parameter, err)
		}
		stored[row.Parameter] = profile.ParameterSetting{Name: row.Parameter, Selected: row.Selected, Direction: dir}
	}
	cfg := profile.DefaultParameterConfig(params)
	for i, s := range cfg {
		if st, ok := stored[s.Name]; ok {
			cfg[i] = st
		}
	}
	return cfg, nil
}

// SavePreferences replaces the stored configuration for a dataset
func (r *preferencesRepository) SavePreferences(ctx context.Context, dataset string, cfg profile.ParameterConfig) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM direction_preferences WHERE dataset = $1`, dataset); err != nil {
		return apperrors.DatabaseError("failed to clear preferences", err)
	}
	for i, s := range cfg {
		dir := s.Direction
		if dir == "" {
			dir = profile.DirectionBoth
		}
		row := preferenceRow{Dataset: dataset, Position: i, Parameter: s.Name, Direction: string(dir), Selected: s.Selected}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO direction_preferences (dataset, position, parameter, direction, selected)
			VALUES (:dataset, :position, :parameter, :direction, :selected)`, row)
		if err != nil {
			return apperrors.DatabaseError("failed to save preferences", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.DatabaseError("failed to commit preferences", err)
	}
	return nil
}

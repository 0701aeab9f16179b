package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	"phenoprofile/ports"
)

var _ ports.PreferencesStore = (*PreferencesFile)(nil)

// PreferencesSuffix names the per-dataset preferences file
const PreferencesSuffix = "_direction_preferences.csv"

// PreferencesFile stores direction preferences next to the data as
// <dataset>_direction_preferences.csv. The header lists parameter names, the
// first row their directions and an optional second row the selection flags.
type PreferencesFile struct {
	dir string
}

// NewPreferencesFile stores preference files in dir
func NewPreferencesFile(dir string) *PreferencesFile {
	return &PreferencesFile{dir: dir}
}

// Path returns the preferences file for a dataset
func (p *PreferencesFile) Path(dataset string) string {
	return filepath.Join(p.dir, dataset+PreferencesSuffix)
}

// LoadPreferences reads the file and aligns it to params
func (p *PreferencesFile) LoadPreferences(ctx context.Context, dataset string, params []string) (profile.ParameterConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.Path(dataset))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrPreferencesMissing, dataset)
		}
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s has no direction row", core.ErrPreferencesMissing, dataset)
	}

	stored := make(map[string]profile.ParameterSetting, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		setting := profile.ParameterSetting{Name: name, Direction: profile.DirectionBoth}
		if i < len(rows[1]) {
			dir, err := profile.ParseDirection(rows[1][i])
			if err != nil {
				return nil, fmt.Errorf("preferences for %s: %w", name, err)
			}
			setting.Direction = dir
		}
		if len(rows) > 2 && i < len(rows[2]) {
			setting.Selected, _ = strconv.ParseBool(strings.TrimSpace(rows[2][i]))
		}
		stored[name] = setting
	}

	cfg := profile.DefaultParameterConfig(params)
	for i, s := range cfg {
		if st, ok := stored[s.Name]; ok {
			cfg[i] = st
		}
	}
	return cfg, nil
}

// SavePreferences writes the configuration, replacing any existing file
func (p *PreferencesFile) SavePreferences(ctx context.Context, dataset string, cfg profile.ParameterConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	f, err := os.Create(p.Path(dataset))
	if err != nil {
		return fmt.Errorf("failed to create preferences: %w", err)
	}
	defer f.Close()

	names := make([]string, len(cfg))
	dirs := make([]string, len(cfg))
	selected := make([]string, len(cfg))
	for i, s := range cfg {
		names[i] = s.Name
		dirs[i] = string(s.Direction)
		if s.Direction == "" {
			dirs[i] = string(profile.DirectionBoth)
		}
		selected[i] = strconv.FormatBool(s.Selected)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll([][]string{names, dirs, selected}); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

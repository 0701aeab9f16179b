package ports

import (
	"context"

	"phenoprofile/domain/profile"
)

// PreferencesStore persists per-parameter direction preferences for a dataset
type PreferencesStore interface {
	// LoadPreferences returns the stored configuration aligned to params.
	// Parameters without a stored preference get direction "both".
	// core.ErrPreferencesMissing is returned when nothing is stored.
	LoadPreferences(ctx context.Context, dataset string, params []string) (profile.ParameterConfig, error)
	SavePreferences(ctx context.Context, dataset string, cfg profile.ParameterConfig) error
}

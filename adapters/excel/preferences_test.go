package excel

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

func TestPreferencesFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPreferencesFile(t.TempDir())

	cfg := profile.ParameterConfig{
		{Name: "p1", Selected: true, Direction: profile.DirectionAbove},
		{Name: "p2", Selected: false, Direction: profile.DirectionBelow},
		{Name: "p3", Selected: true},
	}
	require.NoError(t, store.SavePreferences(ctx, "cohort", cfg))

	// p4 was added to the data after the preferences were saved
	loaded, err := store.LoadPreferences(ctx, "cohort", []string{"p1", "p2", "p3", "p4"})
	require.NoError(t, err)
	assert.Equal(t, profile.ParameterConfig{
		{Name: "p1", Selected: true, Direction: profile.DirectionAbove},
		{Name: "p2", Selected: false, Direction: profile.DirectionBelow},
		{Name: "p3", Selected: true, Direction: profile.DirectionBoth},
		{Name: "p4", Selected: false, Direction: profile.DirectionBoth},
	}, loaded)
}

func TestPreferencesFile_DirectionRowOnly(t *testing.T) {
	dir := t.TempDir()
	store := NewPreferencesFile(dir)
	body := "Distance,Rearing\nabove control,below control\n"
	require.NoError(t, os.WriteFile(store.Path("cohort"), []byte(body), 0o644))

	loaded, err := store.LoadPreferences(context.Background(), "cohort", []string{"distance", "rearing"})
	require.NoError(t, err)
	assert.Equal(t, profile.DirectionAbove, loaded.DirectionOf("distance"))
	assert.Equal(t, profile.DirectionBelow, loaded.DirectionOf("rearing"))
	assert.Empty(t, loaded.SelectedNames())
}

func TestPreferencesFile_Errors(t *testing.T) {
	store := NewPreferencesFile(t.TempDir())

	_, err := store.LoadPreferences(context.Background(), "absent", []string{"p1"})
	assert.ErrorIs(t, err, core.ErrPreferencesMissing)

	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("p1\nsideways\n"), 0o644))
	_, err = store.LoadPreferences(context.Background(), "bad", []string{"p1"})
	assert.ErrorIs(t, err, core.ErrUnknownDirection)
}

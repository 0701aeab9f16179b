package profile

import (
	"fmt"
	"strings"

	"phenoprofile/domain/core"
)

// Direction says which side of the control distribution counts as affected
type Direction string

const (
	DirectionBoth  Direction = "both"
	DirectionAbove Direction = "above control"
	DirectionBelow Direction = "below control"
)

// ParseDirection accepts the preference-file spellings and a few aliases
func ParseDirection(s string) (Direction, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", " ")
	norm = strings.ReplaceAll(norm, "_", " ")
	switch norm {
	case "", "both":
		return DirectionBoth, nil
	case "above control", "above", "up":
		return DirectionAbove, nil
	case "below control", "below", "down":
		return DirectionBelow, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownDirection, s)
}

// ParameterSetting is the per-parameter external configuration
type ParameterSetting struct {
	Name      string    `json:"name" yaml:"name"`
	Selected  bool      `json:"selected" yaml:"selected"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// ParameterConfig is the ordered parameter configuration, column-aligned
// with the data file.
type ParameterConfig []ParameterSetting

// DefaultParameterConfig returns every parameter unselected with direction "both"
func DefaultParameterConfig(params []string) ParameterConfig {
	cfg := make(ParameterConfig, len(params))
	for i, p := range params {
		cfg[i] = ParameterSetting{Name: p, Direction: DirectionBoth}
	}
	return cfg
}

// Lookup finds the setting for a parameter name
func (c ParameterConfig) Lookup(name string) (ParameterSetting, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return ParameterSetting{}, false
}

// DirectionOf returns the configured direction, defaulting to both
func (c ParameterConfig) DirectionOf(name string) Direction {
	if s, ok := c.Lookup(name); ok && s.Direction != "" {
		return s.Direction
	}
	return DirectionBoth
}

// SelectedNames lists selected parameters in column order
func (c ParameterConfig) SelectedNames() []string {
	var out []string
	for _, s := range c {
		if s.Selected {
			out = append(out, s.Name)
		}
	}
	return out
}

// WithSelected returns a copy with the given names selected in addition to
// whatever was already selected.
func (c ParameterConfig) WithSelected(names ...string) ParameterConfig {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	out := make(ParameterConfig, len(c))
	for i, s := range c {
		if set[s.Name] {
			s.Selected = true
		}
		out[i] = s
	}
	return out
}

// Directions extracts the name → direction mapping
func (c ParameterConfig) Directions() map[string]Direction {
	out := make(map[string]Direction, len(c))
	for _, s := range c {
		out[s.Name] = s.Direction
	}
	return out
}

// Selection is the resolved set of groups and parameters an analysis runs on.
// Control is always a member of Groups.
type Selection struct {
	Control    core.GroupID         `json:"control"`
	Groups     []core.GroupID       `json:"groups"`
	Parameters []string             `json:"parameters"`
	Directions map[string]Direction `json:"directions"`
}

// Direction returns the direction configured for a selected parameter
func (s Selection) Direction(param string) Direction {
	if d, ok := s.Directions[param]; ok && d != "" {
		return d
	}
	return DirectionBoth
}

// IncludesGroup reports whether g is part of the selection
func (s Selection) IncludesGroup(g core.GroupID) bool {
	for _, id := range s.Groups {
		if id == g {
			return true
		}
	}
	return false
}

// TreatmentGroups returns the selected groups other than control
func (s Selection) TreatmentGroups() []core.GroupID {
	var out []core.GroupID
	for _, g := range s.Groups {
		if g != s.Control {
			out = append(out, g)
		}
	}
	return out
}

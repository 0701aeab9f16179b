package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseRunID(t *testing.T) {
	valid := NewRunID()
	tests := []struct {
		input    string
		hasError bool
	}{
		{valid.String(), false},
		{"", true},
		{"   ", true},
		{"not-a-uuid", true},
	}

	for _, tt := range tests {
		got, err := ParseRunID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseRunID(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRunID(%q) unexpected error: %v", tt.input, err)
		}
		if got != valid {
			t.Errorf("ParseRunID(%q) = %q", tt.input, got)
		}
	}
}

func TestParseGroupID(t *testing.T) {
	tests := []struct {
		input    string
		expected GroupID
		hasError bool
	}{
		{"0", 0, false},
		{"3", 3, false},
		{"group_2", 2, false},
		{"GROUP_7", 7, false},
		{"1.0", 1, false},
		{"1.5", 0, true},
		{"control", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseGroupID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseGroupID(%q) expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGroupID(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseGroupID(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestGroupIDLabel(t *testing.T) {
	if GroupID(4).Label() != "group_4" {
		t.Errorf("unexpected label %s", GroupID(4).Label())
	}
}

func TestErrorClassification(t *testing.T) {
	cfgErr := NewConfigError(ErrTooFewGroups, "groups", 1)
	if !IsConfigurationError(cfgErr) {
		t.Errorf("expected configuration error, got %v", cfgErr)
	}
	if IsInputError(cfgErr) {
		t.Errorf("configuration error classified as input error")
	}

	colErr := NewMissingColumnsError("need group and subject columns")
	if !errors.Is(colErr, ErrMissingColumns) || !IsInputError(colErr) {
		t.Errorf("expected missing columns input error, got %v", colErr)
	}
}

package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 is not available
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// RunID identifies one analysis run
type RunID ID

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID { return RunID(NewID()) }

func (id RunID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run ID %q is not a UUID: %w", s, err)
	}
	return RunID(s), nil
}

// GroupID is the integer code of an experimental group as it appears in the
// group column of the data file.
type GroupID int

// Label renders the group the way result tables name it, e.g. "group_1".
func (g GroupID) Label() string {
	return "group_" + strconv.Itoa(int(g))
}

func (g GroupID) String() string { return g.Label() }

// ParseGroupID accepts either the bare integer code or a "group_N" label.
func ParseGroupID(s string) (GroupID, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "group_")
	if s == "" {
		return 0, fmt.Errorf("group ID cannot be empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Data files exported from spreadsheets often carry "1.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("group ID %q is not an integer", s)
		}
		n = int(f)
	}
	return GroupID(n), nil
}

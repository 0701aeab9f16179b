package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors
	ErrNoControlGroup     = errors.New("control group not present in data")
	ErrTooFewGroups       = errors.New("at least 2 groups must be selected")
	ErrNoParameters       = errors.New("no parameters selected")
	ErrTooFewParameters   = errors.New("not enough parameters selected for the count range")
	ErrInvalidThreshold   = errors.New("invalid deviation threshold")
	ErrInvalidCutPoint    = errors.New("invalid tier cut point")
	ErrTooManyTasks       = errors.New("too many tasks to enumerate combinations")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrUnknownDirection   = errors.New("unknown parameter direction")
	ErrMissingColumns     = errors.New("missing required columns")
	ErrEmptyTable         = errors.New("table has no subjects")
	ErrInvalidGroupID     = errors.New("group id is not an integer")
	ErrNoPairedRows       = errors.New("no paired rows found")
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrRunNotFound        = errors.New("run not found")
	ErrPreferencesMissing = errors.New("direction preferences not found")

	// Recoverable: the sweep found no candidate under the control ceiling
	ErrNoOptimum = errors.New("no optimum found")
)

// NewConfigError attaches the offending field to a configuration sentinel
func NewConfigError(sentinel error, field string, value interface{}) error {
	return fmt.Errorf("%w: %s=%v", sentinel, field, value)
}

// NewMissingColumnsError reports a malformed header
func NewMissingColumnsError(reason string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumns, reason)
}

// IsConfigurationError reports whether err is caused by the analysis setup
// rather than by the data.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNoControlGroup) ||
		errors.Is(err, ErrTooFewGroups) ||
		errors.Is(err, ErrNoParameters) ||
		errors.Is(err, ErrTooFewParameters) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrInvalidCutPoint) ||
		errors.Is(err, ErrTooManyTasks) ||
		errors.Is(err, ErrUnknownDirection)
}

// IsInputError reports whether err is caused by a malformed data file
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingColumns) ||
		errors.Is(err, ErrEmptyTable) ||
		errors.Is(err, ErrInvalidGroupID) ||
		errors.Is(err, ErrUnknownParameter) ||
		errors.Is(err, ErrNoPairedRows)
}

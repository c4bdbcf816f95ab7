package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound   = errors.New("input file not found")
	ErrEmptyDataset   = errors.New("dataset has no candles")
	ErrRunNotFound    = errors.New("run not found")
	ErrJobNotFound    = errors.New("job not found")
	ErrInvalidWindows = errors.New("invalid session windows")
)

// ParseError reports a malformed input row. It aborts ingestion.
// Error() carries only the line, field and Reason; the raw Value and the
// underlying Err may quote file content and stay out of the message.
type ParseError struct {
	Line   int
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("line %d: invalid %s", e.Line, e.Field)
	}
	return fmt.Sprintf("line %d: invalid %s: %s", e.Line, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ViolationKind names a validation rule.
type ViolationKind string

const (
	ViolationPriceMin   ViolationKind = "price_min"
	ViolationPriceMax   ViolationKind = "price_max"
	ViolationVolume     ViolationKind = "volume"
	ViolationHighLow    ViolationKind = "high_low"
	ViolationOpenRange  ViolationKind = "open_range"
	ViolationCloseRange ViolationKind = "close_range"
	ViolationNulls      ViolationKind = "nulls"
	ViolationDuplicates ViolationKind = "duplicates"
	ViolationGaps       ViolationKind = "gaps"
)

// ValidationError aggregates every hard validation failure of a batch.
type ValidationError struct {
	Messages []string
	Counts   map[ViolationKind]int
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// ValidationWarning is a non-fatal data quality finding.
type ValidationWarning struct {
	Kind    ViolationKind
	Count   int
	Message string
}

func (w ValidationWarning) String() string { return w.Message }

// ValidationResult is the outcome of running all checks over a batch.
type ValidationResult struct {
	Errors   []string
	Warnings []ValidationWarning
	Counts   map[ViolationKind]int
}

// Valid reports whether no hard error was found.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Err returns a *ValidationError when the batch is invalid.
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Messages: r.Errors, Counts: r.Counts}
}

// WarningMessages flattens warnings to their text.
func (r *ValidationResult) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Message)
	}
	return out
}

// InsufficientSampleError marks a pattern that was not emitted because its
// conditioning subset was too small.
type InsufficientSampleError struct {
	Pattern string
	Have    int
	Need    int
}

func (e InsufficientSampleError) Error() string {
	return fmt.Sprintf("%s: insufficient sample (%d, need more than %d)", e.Pattern, e.Have, e.Need)
}

// TimezoneConversionWarning reports that timestamps were kept unconverted.
type TimezoneConversionWarning struct {
	Source    string
	Reference string
	Err       error
}

func (w *TimezoneConversionWarning) Error() string {
	return fmt.Sprintf("timezone conversion %s -> %s failed, timestamps kept as-is: %v", w.Source, w.Reference, w.Err)
}

func (w *TimezoneConversionWarning) Unwrap() error { return w.Err }

// RunError is the structured failure of a pipeline run. It carries every
// error and warning message collected before the run stopped.
type RunError struct {
	Stage    string
	Errors   []string
	Warnings []string
	Err      error
}

func (e *RunError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, strings.Join(e.Errors, "; "))
}

func (e *RunError) Unwrap() error { return e.Err }

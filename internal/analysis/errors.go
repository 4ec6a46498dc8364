package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGroupKey indicates a grouping attribute that is not a categorical Sample field.
	ErrInvalidGroupKey = errors.New("invalid group key")
	// ErrEmptyDataset indicates an operation that needs at least one sample received none.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrInvalidThreshold indicates a percentage threshold that is NaN, infinite or negative.
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrInvalidSample indicates a row that breaks a Sample Table invariant.
	ErrInvalidSample = errors.New("invalid sample")
)

// GroupKeyError reports the rejected key.
type GroupKeyError struct{ Key string }

func (e *GroupKeyError) Error() string {
	return fmt.Sprintf("invalid group key %q (use %s, %s or %s)", e.Key, KeyDeviceClass, KeyOSDID, KeyRunNumber)
}

func (e *GroupKeyError) Unwrap() error { return ErrInvalidGroupKey }

// ThresholdError reports the rejected threshold value.
type ThresholdError struct{ Value float64 }

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("invalid threshold %v: must be a finite, non-negative percentage", e.Value)
}

func (e *ThresholdError) Unwrap() error { return ErrInvalidThreshold }

// SampleError points at the offending row (0-based index into the input sequence).
type SampleError struct {
	Row    int
	Reason string
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("invalid sample at row %d: %s", e.Row, e.Reason)
}

func (e *SampleError) Unwrap() error { return ErrInvalidSample }

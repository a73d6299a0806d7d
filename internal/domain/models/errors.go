package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across layers.
var (
	ErrDataInsufficient = errors.New("insufficient poll data")
	ErrConfig           = errors.New("invalid nowcast configuration")
	ErrModelOutput      = errors.New("invalid model output")
)

// DataInsufficientError reports a candidate (or the whole window) with too
// few poll records. Per-candidate occurrences are non-fatal when the caller
// allows partial runs.
type DataInsufficientError struct {
	Candidate string // empty when the whole filtered window is short
	Got       int
	Need      int
}

func (e *DataInsufficientError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("insufficient poll data: %d records, need %d", e.Got, e.Need)
	}
	return fmt.Sprintf("insufficient poll data for %s: %d records, need %d", e.Candidate, e.Got, e.Need)
}

func (e *DataInsufficientError) Unwrap() error { return ErrDataInsufficient }

// ConfigError reports an invalid run configuration detected before any
// training or simulation work.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ModelOutputError reports a NaN/Inf point estimate from a trained model,
// rejected before it enters the simulation loop.
type ModelOutputError struct {
	Candidate string
	Region    string
	Value     float64
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("model output for %s in %s is not finite: %v", e.Candidate, e.Region, e.Value)
}

func (e *ModelOutputError) Unwrap() error { return ErrModelOutput }

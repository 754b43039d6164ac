package robot

import (
	"errors"
	"fmt"
)

var (
	ErrLinkUnavailable  = errors.New("hardware link unavailable")
	ErrInactive         = errors.New("system not active")
	ErrEmergencyLatched = errors.New("emergency stop engaged")
)

// BoundsError reports a move target outside the configured workspace.
type BoundsError struct {
	Axis            string
	Value, Min, Max float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("out of bounds: %s=%.3f outside [%.3f, %.3f]", e.Axis, e.Value, e.Min, e.Max)
}

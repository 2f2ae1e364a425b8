package models

import (
	"errors"
	"fmt"
)

// Error kinds raised by the alignment pipeline. Callers match them with
// errors.Is; the typed errors below wrap one of these.
var (
	// ErrEmptyResult is returned when no voxel survives the threshold
	ErrEmptyResult = errors.New("no points exceed threshold")

	// ErrDegenerateCloud is returned when PCA or the vertex is undefined
	ErrDegenerateCloud = errors.New("degenerate point cloud")

	// ErrInsufficientPoints is returned when a fit is underdetermined
	ErrInsufficientPoints = errors.New("insufficient points for fit")

	// ErrUnresolvedPoint marks a point whose closest-point search failed
	ErrUnresolvedPoint = errors.New("closest point search did not converge")

	// ErrInvalidConfiguration is returned for out-of-range parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ConfigError names the parameter that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// UnresolvedPointError describes a single point that could not be mapped.
// These are collected per channel and never abort a transform.
type UnresolvedPointError struct {
	ID     int
	Reason string
}

func (e *UnresolvedPointError) Error() string {
	return fmt.Sprintf("point %d: %v: %s", e.ID, ErrUnresolvedPoint, e.Reason)
}

func (e *UnresolvedPointError) Unwrap() error { return ErrUnresolvedPoint }

// ChannelError tags a fatal stage error with the channel being processed.
type ChannelError struct {
	Channel string
	Stage   string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %q: %s: %v", e.Channel, e.Stage, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

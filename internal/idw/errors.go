package idw

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when an index is requested over zero stations.
	ErrEmptyInput = errors.New("idw: station set is empty")

	// ErrInvalidConfiguration is matched by every *ConfigError.
	ErrInvalidConfiguration = errors.New("idw: invalid configuration")
)

// ConfigError describes a single rejected configuration field.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("idw: invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidConfiguration) match.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

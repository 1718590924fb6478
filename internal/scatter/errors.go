package scatter

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("scatter configuration invalid")
	// ErrTerrainQuery matches every *TerrainQueryError.
	ErrTerrainQuery = errors.New("terrain height query failed")
)

// ConfigurationError is reported before the placement loop starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TerrainQueryError aborts a scatter when a height sample fails or is not finite.
type TerrainQueryError struct {
	Index  int
	X, Z   float64
	Height float64
	Err    error
}

func (e *TerrainQueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sample height for tree %d at (%g, %g): %v", e.Index, e.X, e.Z, e.Err)
	}
	return fmt.Sprintf("sample height for tree %d at (%g, %g): non-finite height %v", e.Index, e.X, e.Z, e.Height)
}

func (e *TerrainQueryError) Unwrap() error {
	return e.Err
}

func (e *TerrainQueryError) Is(target error) bool {
	return target == ErrTerrainQuery
}

func configError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

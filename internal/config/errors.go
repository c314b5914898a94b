package config

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

func loadError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoadConfig, source, err)
}

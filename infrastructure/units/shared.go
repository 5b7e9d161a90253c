// Package units provides the voting units that implement the ports.Unit
// interface, together with the pure voting and expert-extraction functions
// they are built on.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TieBreaker represents the strategy for handling classes that receive the
// same number of votes for an epoch during majority voting.
type TieBreaker string

// Supported tie-breaking strategies for voting units.
const (
	// TieFirst selects the lowest tied class index.
	// This provides deterministic behavior for reproducible results.
	TieFirst TieBreaker = "first"

	// TieRandom randomly selects among the tied classes.
	TieRandom TieBreaker = "random"

	// TieError returns an error when an epoch has tied classes.
	// Useful when tie-breaking strategy must be explicitly handled by caller.
	TieError TieBreaker = "error"
)

// Common errors returned by voting units.
var (
	// ErrTie is returned when an epoch's vote is tied and TieError is configured.
	ErrTie = errors.New("classes tied for most votes")

	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrInvalidUnitName is returned when a unit name cannot be used as a
	// model directory name.
	ErrInvalidUnitName = errors.New("unit name must not contain path separators")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// checkUnitName rejects names that cannot double as a pseudo-model
// directory under the experiment root.
func checkUnitName(name string) error {
	if name == "" {
		return ErrEmptyUnitName
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidUnitName, name)
	}
	return nil
}

// decodeConfig overlays a configuration map onto defaults using YAML
// marshaling for clean conversion, then validates the result.
func decodeConfig[T any](config map[string]any, defaults T) (T, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return defaults, fmt.Errorf("marshal config: %w", err)
	}
	cfg := defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaults, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return defaults, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

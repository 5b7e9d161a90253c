package application

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// Supported voter unit types.
const (
	VoterTypeSoftVote     = "soft_vote"
	VoterTypeMajorityVote = "majority_vote"
	VoterTypeUpperBound   = "upper_bound"
)

// ReportConfig defines how an experiment directory is evaluated and which
// ensemble result sets are derived from it.
// Use DefaultReportConfig for the stock SOFT-V, MAJ-V and U-BOUND voters
// over the five sleep stages.
type ReportConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Classes names the stage labels in class-index order. Its length is
	// the number of classes every record must respect.
	Classes []string `yaml:"classes" validate:"required,min=2,max=64,dive,required"`
	// Voters lists the ensemble voters run by the voters operation, in
	// execution order.
	Voters []VoterConfig `yaml:"voters" validate:"required,min=1,max=16,dive"`
	// Store configures the on-disk encoding of written records.
	Store StoreConfig `yaml:"store"`
	// Workers bounds how many records of one subject are read at once.
	Workers int `yaml:"workers" validate:"min=1,max=64"`
}

// VoterConfig defines one ensemble voter. The ID doubles as the name of
// the pseudo-model directory its records are written to.
type VoterConfig struct {
	// ID is the unique voter identifier and output model name.
	ID string `yaml:"id" validate:"required,min=1,max=100,excludesall=/\\"`
	// Type selects the voter implementation.
	Type string `yaml:"type" validate:"required,oneof=soft_vote majority_vote upper_bound"`
	// Parameters contains type-specific configuration decoded by the unit
	// factory.
	Parameters yaml.Node `yaml:"parameters,omitempty"`
}

// StoreConfig selects the encoding of records written by the experts and
// voters operations.
type StoreConfig struct {
	// Format is either "json" (default) or "yaml".
	Format string `yaml:"format" validate:"omitempty,oneof=json yaml"`
	// ReadsPerSecond throttles record reads and writes; 0 disables it.
	ReadsPerSecond float64 `yaml:"reads_per_second" validate:"min=0"`
	// Burst is the number of records that may bypass the throttle at once.
	Burst int `yaml:"burst" validate:"min=0"`
}

// NumClasses returns the number of configured classes.
func (c ReportConfig) NumClasses() int { return len(c.Classes) }

// VoterIDs returns the configured voter identifiers in order.
func (c ReportConfig) VoterIDs() []string {
	ids := make([]string, len(c.Voters))
	for i, v := range c.Voters {
		ids[i] = v.ID
	}
	return ids
}

// DefaultReportConfig returns the configuration that reproduces the
// classic report: soft vote, majority vote and oracle upper bound over the
// five sleep stages, JSON records and sequential reads.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Version: "1.0.0",
		Classes: append([]string(nil), domain.SleepStages...),
		Voters: []VoterConfig{
			{ID: domain.ModelSoftVote, Type: VoterTypeSoftVote},
			{ID: domain.ModelMajorityVote, Type: VoterTypeMajorityVote},
			{ID: domain.ModelUpperBound, Type: VoterTypeUpperBound},
		},
		Store:   StoreConfig{Format: "json"},
		Workers: 1,
	}
}

// ParseReportConfig decodes YAML over DefaultReportConfig and validates
// the result. Keys absent from data keep their default values; unknown
// keys are rejected.
func ParseReportConfig(data []byte) (ReportConfig, error) {
	config := DefaultReportConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.
	if err := decoder.Decode(&config); err != nil {
		return ReportConfig{}, fmt.Errorf("YAML decode failed: %w: %w", domain.ErrInvalidConfiguration, err)
	}

	if err := ValidateReportConfig(config); err != nil {
		return ReportConfig{}, err
	}
	return config, nil
}

// LoadReportConfig reads and parses the report configuration at path.
func LoadReportConfig(path string) (ReportConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return ReportConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseReportConfig(data)
}

// configValidator is shared by every config validation; it carries the
// custom semver rule.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		panic(fmt.Sprintf("register semver validator: %v", err))
	}
	return v
}

// ValidateReportConfig checks struct tags and the rules that cannot be
// expressed as tags: voter IDs must be unique, must not clash with expert
// model names, and class names must be unique.
func ValidateReportConfig(config ReportConfig) error {
	if err := configValidator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w: %w", domain.ErrInvalidConfiguration, err)
	}

	verr := domain.NewValidationError("ReportConfig")

	seen := make(map[string]struct{}, len(config.Voters))
	for _, v := range config.Voters {
		if _, dup := seen[v.ID]; dup {
			verr.AddError(fmt.Sprintf("duplicate voter id %q", v.ID))
		}
		seen[v.ID] = struct{}{}
		if v.ID == "." || v.ID == ".." {
			verr.AddError(fmt.Sprintf("voter id %q is not a valid directory name", v.ID))
		}
		if strings.HasPrefix(v.ID, domain.ExpertModelPrefix) {
			verr.AddError(fmt.Sprintf("voter id %q uses the reserved %q prefix", v.ID, domain.ExpertModelPrefix))
		}
	}

	classes := make(map[string]struct{}, len(config.Classes))
	for _, c := range config.Classes {
		if _, dup := classes[c]; dup {
			verr.AddError(fmt.Sprintf("duplicate class %q", c))
		}
		classes[c] = struct{}{}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(value, "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

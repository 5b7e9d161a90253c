package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var (
	_ ports.Unit   = (*MajorityVoteUnit)(nil)
	_ domain.Voter = (*MajorityVoteUnit)(nil)
)

// MajorityVoteUnit implements a Voter that predicts, per epoch, the class
// chosen by most base models.
//
// Error Conditions:
//   - domain.ErrInvalidInput for empty or misaligned bundles and labels
//     outside [0, NumClasses)
//   - ErrTie when an epoch is tied and TieError is configured
//
// Example:
//
//	unit, err := NewMajorityVoteUnit("MAJ-V", DefaultMajorityVoteConfig())
type MajorityVoteUnit struct {
	// name is the unit identifier and the pseudo-model of its records.
	name string
	// config contains validated configuration parameters.
	config MajorityVoteConfig
}

// MajorityVoteConfig defines the configuration parameters for the
// MajorityVoteUnit.
type MajorityVoteConfig struct {
	// TieBreaker defines how to resolve epochs where several classes get
	// the same number of votes.
	//
	// Supported values:
	//   - "first": lowest class index (default, deterministic)
	//   - "random": random tied class
	//   - "error": fail the vote
	TieBreaker TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=first random error"`

	// NumClasses is the number of classes labels are drawn from.
	NumClasses int `yaml:"num_classes" json:"num_classes" validate:"min=2,max=64"`
}

// NewMajorityVoteUnit creates a new MajorityVoteUnit with the specified
// configuration.
func NewMajorityVoteUnit(name string, config MajorityVoteConfig) (*MajorityVoteUnit, error) {
	if err := checkUnitName(name); err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &MajorityVoteUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *MajorityVoteUnit) Name() string { return u.name }

// Execute majority-votes the subject bundle in state and appends the
// ensemble record to domain.KeyEnsembles.
func (u *MajorityVoteUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return executeVoter(ctx, u.name, u, state)
}

// Vote implements the domain.Voter interface.
func (u *MajorityVoteUnit) Vote(bundle []domain.ResultRecord) (domain.ResultRecord, error) {
	if err := domain.ValidateBundle(bundle); err != nil {
		return domain.ResultRecord{}, err
	}
	pred, err := MajorityVote(domain.BundlePredictions(bundle), u.config.NumClasses, u.config.TieBreaker)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	return ensembleRecord(u.name, bundle, pred)
}

// Validate checks if the unit is properly configured.
func (u *MajorityVoteUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
//
// Example YAML:
//
//	tie_breaker: "first"
//	num_classes: 5
func (u *MajorityVoteUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultMajorityVoteConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	u.config = config
	return nil
}

// DefaultMajorityVoteConfig returns a MajorityVoteConfig for the five
// sleep stages with lowest-index tie-breaking.
func DefaultMajorityVoteConfig() MajorityVoteConfig {
	return MajorityVoteConfig{
		TieBreaker: TieFirst,
		NumClasses: domain.NumClasses,
	}
}

// NewMajorityVoteFromConfig creates a MajorityVoteUnit from a
// configuration map.
func NewMajorityVoteFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := decodeConfig(config, DefaultMajorityVoteConfig())
	if err != nil {
		return nil, err
	}
	return NewMajorityVoteUnit(id, cfg)
}

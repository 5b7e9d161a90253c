package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var (
	_ ports.Unit   = (*SoftVoteUnit)(nil)
	_ domain.Voter = (*SoftVoteUnit)(nil)
)

// SoftVoteUnit implements a Voter that averages the per-class probability
// matrices of all base models and predicts the arg-max class per epoch.
//
// Every bundle member must carry probabilities; a member without them
// fails the vote with domain.ErrMissingData.
//
// The unit is stateless and thread-safe.
type SoftVoteUnit struct {
	name   string
	config SoftVoteConfig
}

// SoftVoteConfig defines the configuration parameters for the SoftVoteUnit.
type SoftVoteConfig struct {
	// MinModels is the minimum number of base models required to vote.
	MinModels int `yaml:"min_models" json:"min_models" validate:"min=1,max=1000"`
}

// NewSoftVoteUnit creates a new SoftVoteUnit. The name doubles as the
// pseudo-model identifier of the records it produces.
func NewSoftVoteUnit(name string, config SoftVoteConfig) (*SoftVoteUnit, error) {
	if err := checkUnitName(name); err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &SoftVoteUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *SoftVoteUnit) Name() string { return u.name }

// Execute soft-votes the subject bundle in state and appends the ensemble
// record to domain.KeyEnsembles.
func (u *SoftVoteUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return executeVoter(ctx, u.name, u, state)
}

// Vote implements the domain.Voter interface.
func (u *SoftVoteUnit) Vote(bundle []domain.ResultRecord) (domain.ResultRecord, error) {
	if len(bundle) < u.config.MinModels {
		return domain.ResultRecord{}, fmt.Errorf("%w: %d models, soft vote needs at least %d",
			domain.ErrInvalidInput, len(bundle), u.config.MinModels)
	}
	pred, err := SoftVote(bundle)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	return ensembleRecord(u.name, bundle, pred)
}

// Validate checks if the unit is properly configured.
func (u *SoftVoteUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
func (u *SoftVoteUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultSoftVoteConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	u.config = config
	return nil
}

// DefaultSoftVoteConfig returns a SoftVoteConfig with sensible defaults.
func DefaultSoftVoteConfig() SoftVoteConfig {
	return SoftVoteConfig{MinModels: 1}
}

// NewSoftVoteFromConfig creates a SoftVoteUnit from a configuration map.
// This is the boundary adapter for YAML configuration.
func NewSoftVoteFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := decodeConfig(config, DefaultSoftVoteConfig())
	if err != nil {
		return nil, err
	}
	return NewSoftVoteUnit(id, cfg)
}

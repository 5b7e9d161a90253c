package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var (
	_ ports.Unit   = (*UpperBoundUnit)(nil)
	_ domain.Voter = (*UpperBoundUnit)(nil)
)

// UpperBoundUnit implements the oracle Voter: it starts from the majority
// vote and takes the true label at every epoch where any base model was
// correct. Its accuracy is the best any per-epoch model selector could
// reach, so it bounds every member and the majority vote from above.
type UpperBoundUnit struct {
	name   string
	config UpperBoundConfig
}

// UpperBoundConfig defines the configuration parameters for the
// UpperBoundUnit.
type UpperBoundConfig struct {
	// TieBreaker resolves ties in the underlying majority vote. Epochs
	// where the oracle overrides the vote are unaffected by it.
	TieBreaker TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=first random"`

	// NumClasses is the number of classes labels are drawn from.
	NumClasses int `yaml:"num_classes" json:"num_classes" validate:"min=2,max=64"`
}

// NewUpperBoundUnit creates a new UpperBoundUnit with the specified
// configuration.
func NewUpperBoundUnit(name string, config UpperBoundConfig) (*UpperBoundUnit, error) {
	if err := checkUnitName(name); err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &UpperBoundUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *UpperBoundUnit) Name() string { return u.name }

// Execute computes the oracle prediction for the subject bundle in state
// and appends the ensemble record to domain.KeyEnsembles.
func (u *UpperBoundUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return executeVoter(ctx, u.name, u, state)
}

// Vote implements the domain.Voter interface.
func (u *UpperBoundUnit) Vote(bundle []domain.ResultRecord) (domain.ResultRecord, error) {
	if err := domain.ValidateBundle(bundle); err != nil {
		return domain.ResultRecord{}, err
	}
	preds := domain.BundlePredictions(bundle)
	majority, err := MajorityVote(preds, u.config.NumClasses, u.config.TieBreaker)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	pred, err := UpperBound(majority, bundle[0].YTrue, preds)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	return ensembleRecord(u.name, bundle, pred)
}

// Validate checks if the unit is properly configured.
func (u *UpperBoundUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML parameters into the unit's config.
func (u *UpperBoundUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultUpperBoundConfig()
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	u.config = config
	return nil
}

// DefaultUpperBoundConfig returns an UpperBoundConfig for the five sleep
// stages.
func DefaultUpperBoundConfig() UpperBoundConfig {
	return UpperBoundConfig{
		TieBreaker: TieFirst,
		NumClasses: domain.NumClasses,
	}
}

// NewUpperBoundFromConfig creates an UpperBoundUnit from a configuration
// map.
func NewUpperBoundFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg, err := decodeConfig(config, DefaultUpperBoundConfig())
	if err != nil {
		return nil, err
	}
	return NewUpperBoundUnit(id, cfg)
}

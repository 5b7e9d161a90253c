package store

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

// Format selects the encoding used for newly written record files.
type Format string

// Supported record encodings.
const (
	// FormatJSON writes <subject>.json files.
	FormatJSON Format = "json"

	// FormatYAML writes <subject>.yaml files.
	FormatYAML Format = "yaml"
)

// readExtensions lists the record file extensions the store understands,
// in lookup order.
var readExtensions = []string{".json", ".yaml", ".yml"}

// Extension returns the file extension records of this format use.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// rawRecord mirrors every key a record file may carry, including the
// legacy aliases truth, pred and y_probs.
type rawRecord struct {
	Truth          []int         `json:"truth" yaml:"truth"`
	YTrue          []int         `json:"y_true" yaml:"y_true"`
	Pred           []int         `json:"pred" yaml:"pred"`
	YPred          []int         `json:"y_pred" yaml:"y_pred"`
	Acc            *float64      `json:"acc" yaml:"acc"`
	Probs          [][]float64   `json:"probs" yaml:"probs"`
	YProbs         [][]float64   `json:"y_probs" yaml:"y_probs"`
	ExpertChannels []string      `json:"expert_channels" yaml:"expert_channels"`
	YExperts       [][][]float64 `json:"y_experts" yaml:"y_experts"`
	A              [][]float64   `json:"a" yaml:"a"`
	Attention      []float64     `json:"attention" yaml:"attention"`
}

// fileRecord is the canonical layout written back to disk.
type fileRecord struct {
	YTrue     []int       `json:"y_true" yaml:"y_true"`
	YPred     []int       `json:"y_pred" yaml:"y_pred"`
	Acc       float64     `json:"acc" yaml:"acc"`
	Probs     [][]float64 `json:"probs,omitempty" yaml:"probs,omitempty"`
	Attention []float64   `json:"attention,omitempty" yaml:"attention,omitempty"`

	ExpertChannels []string      `json:"expert_channels,omitempty" yaml:"expert_channels,omitempty"`
	YExperts       [][][]float64 `json:"y_experts,omitempty" yaml:"y_experts,omitempty"`
	A              [][]float64   `json:"a,omitempty" yaml:"a,omitempty"`
}

// decodeRaw parses data according to the extension of path.
func decodeRaw(path string, data []byte) (rawRecord, error) {
	var raw rawRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return raw, fmt.Errorf("%w: %v", ports.ErrCorruptRecord, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return raw, fmt.Errorf("%w: %v", ports.ErrCorruptRecord, err)
		}
	default:
		return raw, fmt.Errorf("%w: %q", ports.ErrUnsupportedFormat, filepath.Ext(path))
	}
	return raw, nil
}

// encodeRecord serializes rec in the canonical layout for format.
func encodeRecord(format Format, rec domain.ResultRecord) ([]byte, error) {
	out := fileRecord{
		YTrue:     rec.YTrue,
		YPred:     rec.YPred,
		Acc:       rec.Accuracy,
		Probs:     rec.Probs,
		Attention: rec.Attention,

		ExpertChannels: rec.ExpertChannels,
		YExperts:       rec.YExperts,
		A:              rec.ExpertAttention,
	}
	switch format {
	case FormatYAML:
		return yaml.Marshal(out)
	case FormatJSON, "":
		return json.MarshalIndent(out, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %q", ports.ErrUnsupportedFormat, format)
	}
}

// toRecord resolves key aliases, normalizes the accuracy and validates
// the result. truth wins over y_true and pred over y_pred; y_probs wins
// over probs.
func (raw rawRecord) toRecord(subject, model string, numClasses int) (domain.ResultRecord, error) {
	rec := domain.ResultRecord{
		SubjectID:       subject,
		ModelID:         model,
		YTrue:           firstNonNil(raw.Truth, raw.YTrue),
		YPred:           firstNonNil(raw.Pred, raw.YPred),
		Probs:           firstNonNil(raw.YProbs, raw.Probs),
		ExpertChannels:  raw.ExpertChannels,
		YExperts:        raw.YExperts,
		ExpertAttention: raw.A,
		Attention:       raw.Attention,
	}
	if rec.YTrue == nil {
		return rec, fmt.Errorf("%w: record has neither truth nor y_true", domain.ErrInvalidInput)
	}
	if rec.YPred == nil {
		return rec, fmt.Errorf("%w: record has neither pred nor y_pred", domain.ErrInvalidInput)
	}

	acc, err := NormalizeAccuracy(raw.Acc, rec.YTrue, rec.YPred)
	if err != nil {
		return rec, err
	}
	rec.Accuracy = acc

	if err := rec.Validate(numClasses); err != nil {
		return rec, err
	}
	return rec, nil
}

// NormalizeAccuracy returns the stored accuracy as a percentage.
// A missing value is recomputed from the labels. A value in [0, 1] that is
// closer to the recomputed fraction than to the recomputed percentage is
// taken as a fraction and scaled by 100. Anything else must already lie in
// [0, 100].
func NormalizeAccuracy(stored *float64, yTrue, yPred []int) (float64, error) {
	computed, err := domain.Accuracy(yPred, yTrue)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return computed, nil
	}

	acc := *stored
	if math.IsNaN(acc) {
		return 0, fmt.Errorf("%w: accuracy is NaN", domain.ErrInvalidInput)
	}
	if acc >= 0 && acc <= 1 && math.Abs(acc*100-computed) < math.Abs(acc-computed) {
		return acc * 100, nil
	}
	if acc < 0 || acc > 100 {
		return 0, fmt.Errorf("%w: accuracy %v outside [0, 100]", domain.ErrInvalidInput, acc)
	}
	return acc, nil
}

func firstNonNil[T any](preferred, fallback []T) []T {
	if preferred != nil {
		return preferred
	}
	return fallback
}

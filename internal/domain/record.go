package domain

import (
	"fmt"
	"math"
	"slices"
)

// SleepStages lists the sleep-stage labels in class-index order.
var SleepStages = []string{"W", "N1", "N2", "N3", "REM"}

// NumClasses is the number of sleep-stage classes (len(SleepStages)).
const NumClasses = 5

// Pseudo-model identifiers for derived result sets.
const (
	// ModelSoftVote holds soft-vote ensemble results.
	ModelSoftVote = "SOFT-V"

	// ModelMajorityVote holds majority-vote ensemble results.
	ModelMajorityVote = "MAJ-V"

	// ModelUpperBound holds oracle upper-bound ensemble results.
	ModelUpperBound = "U-BOUND"

	// ExpertModelPrefix prefixes model directories holding per-expert
	// results decomposed from a mixture-of-experts model.
	ExpertModelPrefix = "Expert-"
)

// ResultRecord is one subject's stored prediction bundle for one model.
// Optional fields are nil when the source file did not carry them; use the
// Has* methods rather than probing individual slices.
type ResultRecord struct {
	// SubjectID identifies the recording (the result file's stem).
	SubjectID string `json:"subject_id"`

	// ModelID identifies the producing model (the result directory name).
	ModelID string `json:"model_id"`

	// YTrue holds the ground-truth class index per epoch.
	YTrue []int `json:"y_true"`

	// YPred holds the predicted class index per epoch.
	YPred []int `json:"y_pred"`

	// Accuracy is the share of correctly classified epochs as a percentage
	// in [0, 100].
	Accuracy float64 `json:"acc"`

	// Probs is the optional N×C matrix of per-class probabilities.
	Probs [][]float64 `json:"probs,omitempty"`

	// ExpertChannels names the experts of a mixture-of-experts model.
	ExpertChannels []string `json:"expert_channels,omitempty"`

	// YExperts is the optional N×E×C tensor of per-expert probabilities.
	YExperts [][][]float64 `json:"y_experts,omitempty"`

	// ExpertAttention is the optional N×E matrix of per-expert gate weights.
	ExpertAttention [][]float64 `json:"a,omitempty"`

	// Attention is the optional per-epoch attention weight in [0, 1].
	Attention []float64 `json:"attention,omitempty"`
}

// Clone returns a deep copy of r. Absent optional fields stay nil.
func (r ResultRecord) Clone() ResultRecord {
	out := r
	out.YTrue = slices.Clone(r.YTrue)
	out.YPred = slices.Clone(r.YPred)
	out.Probs = cloneRows(r.Probs)
	out.ExpertChannels = slices.Clone(r.ExpertChannels)
	if r.YExperts != nil {
		out.YExperts = make([][][]float64, len(r.YExperts))
		for i, m := range r.YExperts {
			out.YExperts[i] = cloneRows(m)
		}
	}
	out.ExpertAttention = cloneRows(r.ExpertAttention)
	out.Attention = slices.Clone(r.Attention)
	return out
}

func cloneRows(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}

// Epochs returns the number of classified epochs.
func (r ResultRecord) Epochs() int { return len(r.YTrue) }

// HasProbs reports whether per-class probabilities are present.
func (r ResultRecord) HasProbs() bool { return r.Probs != nil }

// HasExperts reports whether the record carries mixture-of-experts outputs.
func (r ResultRecord) HasExperts() bool { return r.ExpertChannels != nil && r.YExperts != nil }

// HasExpertAttention reports whether per-expert gate weights are present.
func (r ResultRecord) HasExpertAttention() bool { return r.ExpertAttention != nil }

// HasAttention reports whether a per-epoch attention sequence is present.
func (r ResultRecord) HasAttention() bool { return r.Attention != nil }

// MeanAttention returns the mean attention weight of the record.
func (r ResultRecord) MeanAttention() (float64, error) {
	if !r.HasAttention() {
		return 0, fmt.Errorf("%w: attention", ErrMissingData)
	}
	if len(r.Attention) == 0 {
		return 0, fmt.Errorf("%w: empty attention sequence", ErrInvalidInput)
	}
	var sum float64
	for _, a := range r.Attention {
		sum += a
	}
	return sum / float64(len(r.Attention)), nil
}

// WrongEpochs returns the indices of epochs whose prediction differs from
// the ground truth.
func (r ResultRecord) WrongEpochs() []int {
	var wrong []int
	for i := range r.YTrue {
		if i < len(r.YPred) && r.YTrue[i] != r.YPred[i] {
			wrong = append(wrong, i)
		}
	}
	return wrong
}

// Validate checks the record's shape invariants against numClasses.
func (r ResultRecord) Validate(numClasses int) error {
	n := len(r.YTrue)
	if len(r.YPred) != n {
		return fmt.Errorf("%w: y_true has %d epochs, y_pred has %d", ErrInvalidInput, n, len(r.YPred))
	}
	if err := CheckLabels(r.YTrue, numClasses); err != nil {
		return fmt.Errorf("y_true: %w", err)
	}
	if err := CheckLabels(r.YPred, numClasses); err != nil {
		return fmt.Errorf("y_pred: %w", err)
	}
	if math.IsNaN(r.Accuracy) || r.Accuracy < 0 || r.Accuracy > 100 {
		return fmt.Errorf("%w: accuracy %v outside [0, 100]", ErrInvalidInput, r.Accuracy)
	}
	if r.HasProbs() {
		if len(r.Probs) != n {
			return fmt.Errorf("%w: probs has %d rows, want %d", ErrInvalidInput, len(r.Probs), n)
		}
		for i, row := range r.Probs {
			if len(row) != numClasses {
				return fmt.Errorf("%w: probs row %d has %d columns, want %d",
					ErrInvalidInput, i, len(row), numClasses)
			}
		}
	}
	if r.HasAttention() {
		if len(r.Attention) != n {
			return fmt.Errorf("%w: attention has %d values, want %d", ErrInvalidInput, len(r.Attention), n)
		}
		for i, w := range r.Attention {
			if math.IsNaN(w) || w < 0 || w > 1 {
				return fmt.Errorf("%w: attention %d is %v, outside [0, 1]", ErrInvalidInput, i, w)
			}
		}
	}
	return nil
}

// CheckLabels verifies every label lies in [0, numClasses).
func CheckLabels(labels []int, numClasses int) error {
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return fmt.Errorf("%w: label %d at epoch %d outside [0, %d)", ErrInvalidInput, l, i, numClasses)
		}
	}
	return nil
}

// Accuracy returns 100 * (1 - mismatches / N) for aligned predictions.
func Accuracy(yPred, yTrue []int) (float64, error) {
	if len(yPred) != len(yTrue) {
		return 0, fmt.Errorf("%w: y_pred has %d epochs, y_true has %d", ErrInvalidInput, len(yPred), len(yTrue))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("%w: no epochs", ErrInvalidInput)
	}
	wrong := 0
	for i := range yTrue {
		if yPred[i] != yTrue[i] {
			wrong++
		}
	}
	return 100 * (1 - float64(wrong)/float64(len(yTrue))), nil
}

// ArgMax returns the index of the largest value; the lowest index wins ties.
func ArgMax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

// NewDerivedRecord builds a record for a derived result set and computes
// its accuracy from yPred against yTrue. yTrue is copied.
func NewDerivedRecord(subject, model string, yTrue, yPred []int) (ResultRecord, error) {
	acc, err := Accuracy(yPred, yTrue)
	if err != nil {
		return ResultRecord{}, err
	}
	return ResultRecord{
		SubjectID: subject,
		ModelID:   model,
		YTrue:     append([]int(nil), yTrue...),
		YPred:     yPred,
		Accuracy:  acc,
	}, nil
}

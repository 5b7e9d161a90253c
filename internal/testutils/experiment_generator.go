package testutils

import (
	"fmt"
	"math/rand"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// ModelProfile describes one synthetic classifier.
type ModelProfile struct {
	// Name is the model directory name.
	Name string `json:"name"`

	// Accuracy is the probability (0.0-1.0) that an epoch is predicted
	// correctly.
	Accuracy float64 `json:"accuracy"`

	// Attention adds a per-epoch attention sequence to every record.
	Attention bool `json:"attention"`

	// Experts, when non-empty, makes the model a mixture of experts with
	// the given channel names.
	Experts []string `json:"experts,omitempty"`
}

// ExperimentSpec controls GenerateExperiment.
type ExperimentSpec struct {
	Subjects   int            `json:"subjects"`
	Epochs     int            `json:"epochs"`
	NumClasses int            `json:"num_classes"`
	Models     []ModelProfile `json:"models"`
}

// DefaultExperimentSpec returns a small three-model experiment with one
// attention model and one mixture-of-experts model.
func DefaultExperimentSpec() ExperimentSpec {
	return ExperimentSpec{
		Subjects:   4,
		Epochs:     120,
		NumClasses: domain.NumClasses,
		Models: []ModelProfile{
			{Name: "AMOE", Accuracy: 0.82, Attention: true, Experts: []string{"EEG", "EOG", "EMG"}},
			{Name: "DEEPSLEEP", Accuracy: 0.78},
			{Name: "SLEEPNET", Accuracy: 0.74, Attention: true},
		},
	}
}

// SubjectName returns the synthetic subject identifier for index i.
func SubjectName(i int) string { return fmt.Sprintf("SC4%03d", i) }

// GenerateExperiment creates records for every subject and model of spec.
// All models of a subject share one ground-truth hypnogram. The seed
// controls randomization; use a fixed value for reproducible tests.
func GenerateExperiment(spec ExperimentSpec, seed int64) []domain.ResultRecord {
	rng := rand.New(rand.NewSource(seed))
	numClasses := spec.NumClasses
	if numClasses < 2 {
		numClasses = domain.NumClasses
	}

	records := make([]domain.ResultRecord, 0, spec.Subjects*len(spec.Models))
	for s := 0; s < spec.Subjects; s++ {
		subject := SubjectName(s)
		truth := generateHypnogram(rng, spec.Epochs, numClasses)

		for _, profile := range spec.Models {
			probs := make([][]float64, spec.Epochs)
			pred := make([]int, spec.Epochs)
			for e := range truth {
				label := truth[e]
				if rng.Float64() >= profile.Accuracy {
					label = (truth[e] + 1 + rng.Intn(numClasses-1)) % numClasses
				}
				pred[e] = label
				probs[e] = peakedProbs(rng, label, numClasses)
			}

			rec := NewRecord(subject, profile.Name, truth, pred)
			rec.Probs = probs
			if profile.Attention {
				rec.Attention = make([]float64, spec.Epochs)
				for e := range rec.Attention {
					rec.Attention[e] = rng.Float64()
				}
			}
			if len(profile.Experts) > 0 {
				addExperts(rng, &rec, profile.Experts, numClasses)
			}
			records = append(records, rec)
		}
	}
	return records
}

// generateHypnogram produces a label sequence with stage persistence, the
// way real hypnograms stay in one stage for several epochs.
func generateHypnogram(rng *rand.Rand, epochs, numClasses int) []int {
	truth := make([]int, epochs)
	stage := 0
	for e := range truth {
		if rng.Float64() < 0.15 {
			stage = rng.Intn(numClasses)
		}
		truth[e] = stage
	}
	return truth
}

// peakedProbs returns a probability row whose arg-max is label.
func peakedProbs(rng *rand.Rand, label, numClasses int) []float64 {
	row := make([]float64, numClasses)
	var rest float64
	for c := range row {
		if c != label {
			row[c] = rng.Float64() * 0.1
			rest += row[c]
		}
	}
	row[label] = 1 - rest
	return row
}

func addExperts(rng *rand.Rand, rec *domain.ResultRecord, experts []string, numClasses int) {
	n := rec.Epochs()
	rec.ExpertChannels = append([]string(nil), experts...)
	rec.YExperts = make([][][]float64, n)
	rec.ExpertAttention = make([][]float64, n)
	for e := 0; e < n; e++ {
		rec.YExperts[e] = make([][]float64, len(experts))
		weights := make([]float64, len(experts))
		var total float64
		for x := range experts {
			label := rec.YTrue[e]
			if rng.Float64() < 0.3 {
				label = rng.Intn(numClasses)
			}
			rec.YExperts[e][x] = peakedProbs(rng, label, numClasses)
			weights[x] = rng.Float64() + 0.01
			total += weights[x]
		}
		for x := range weights {
			weights[x] /= total
		}
		rec.ExpertAttention[e] = weights
	}
}

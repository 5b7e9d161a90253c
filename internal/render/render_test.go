package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sleepeval/internal/application"
	"github.com/ahrav/go-sleepeval/internal/domain"
)

func plainOptions() Options {
	opts := DefaultOptions()
	opts.NoColor = true
	return opts
}

func sampleTable(t *testing.T) application.TableReport {
	t.Helper()
	values := map[string][]float64{"s1": {80, 90}, "s2": {70, 95}}
	table, err := domain.BuildTable([]string{"s1", "s2"}, []string{"A", "B"}, func(subject, model string) (float64, error) {
		if model == "A" {
			return values[subject][0], nil
		}
		return values[subject][1], nil
	})
	require.NoError(t, err)
	summary, err := table.Aggregate()
	require.NoError(t, err)
	return application.TableReport{Table: table, Summary: summary}
}

// rowOf returns the rendered line whose first cell is label.
func rowOf(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(strings.TrimLeft(line, "│| ")), label+" ") {
			return line
		}
	}
	return ""
}

func TestTable(t *testing.T) {
	out := Table("accuracy", sampleTable(t), plainOptions())

	assert.True(t, strings.HasPrefix(out, "accuracy\n"))
	assert.Contains(t, out, "subject")
	assert.Contains(t, rowOf(out, "s1"), "80.00")
	assert.Contains(t, rowOf(out, "s2"), "95.00")

	mean := rowOf(out, "mean")
	assert.Contains(t, mean, "75.00")
	assert.Contains(t, mean, "92.50")
	std := rowOf(out, "std")
	assert.Contains(t, std, "5.00")
	assert.Contains(t, std, "2.50")
}

func TestTable_Precision(t *testing.T) {
	opts := plainOptions()
	opts.Precision = 0
	out := Table("", sampleTable(t), opts)

	assert.Contains(t, rowOf(out, "mean"), "75")
	assert.NotContains(t, out, "92.50")
	assert.False(t, strings.HasPrefix(out, "\n"), "empty titles are dropped")
}

func TestConfusion(t *testing.T) {
	yTrue := []int{0, 0, 1, 2, 2, 2}
	yPred := []int{0, 1, 1, 2, 2, 0}
	cm, err := domain.ComputeConfusion(yTrue, yPred, 3)
	require.NoError(t, err)
	acc, err := domain.Accuracy(yPred, yTrue)
	require.NoError(t, err)

	opts := plainOptions()
	opts.Classes = []string{"W", "NREM"}
	out := Confusion(application.ModelConfusion{
		Model:    "AMOE",
		Matrix:   cm,
		PerClass: cm.PerClass(),
		Accuracy: acc,
	}, opts)

	assert.Contains(t, out, "AMOE  acc=66.67%  epochs=6")
	for _, h := range []string{`true\pred`, "PR", "RE", "F1", "S"} {
		assert.Contains(t, out, h)
	}
	assert.Contains(t, rowOf(out, "NREM"), "1.00", "class 1 recall")
	assert.NotEmpty(t, rowOf(out, "2"), "classes beyond the names fall back to indices")
}

func TestConfusions(t *testing.T) {
	cm, err := domain.ComputeConfusion([]int{0, 1}, []int{0, 1}, 2)
	require.NoError(t, err)
	reports := []application.ModelConfusion{
		{Model: "A", Matrix: cm, PerClass: cm.PerClass(), Accuracy: 100},
		{Model: "B", Matrix: cm, PerClass: cm.PerClass(), Accuracy: 100},
	}

	out := Confusions(reports, plainOptions())
	assert.Less(t, strings.Index(out, "A  acc="), strings.Index(out, "B  acc="))
}

func TestHypnogram(t *testing.T) {
	assert.Empty(t, Hypnogram(nil, plainOptions()))

	traces := []domain.HypnogramTrace{
		{Subject: "SC4001", Model: "AMOE", YTrue: []int{0, 1, 2, 3}, WrongEpochs: []int{3}, Accuracy: 75, Attention: []float64{0.2, 0.4, 0.6, 0.8}},
		{Subject: "SC4001", Model: "DEEPSLEEP", YTrue: []int{0, 1, 2, 3}, Accuracy: 100},
	}
	out := Hypnogram(traces, plainOptions())

	assert.True(t, strings.HasPrefix(out, "hypnogram SC4001\n"))
	amoe := rowOf(out, "AMOE")
	assert.Contains(t, amoe, "75.00")
	assert.Contains(t, amoe, "0.50")
	assert.Contains(t, rowOf(out, "DEEPSLEEP"), "-")
}

func TestVotersAndExperts(t *testing.T) {
	table := sampleTable(t)

	voters := Voters(application.VoterReport{BaseModels: []string{"AMOE", "SLEEPNET"}, Table: table}, plainOptions())
	assert.True(t, strings.HasPrefix(voters, "ensembles over AMOE, SLEEPNET\n"))

	experts := Experts(application.ExpertReport{Source: "AMOE", Experts: []string{"Expert-EEG"}, Table: table}, plainOptions())
	assert.True(t, strings.HasPrefix(experts, "experts of AMOE: Expert-EEG\n"))
}

func TestStyledOutputKeepsContent(t *testing.T) {
	opts := DefaultOptions()
	out := Table("accuracy", sampleTable(t), opts)
	assert.Contains(t, out, "92.50")
}

package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yPred   []int
		yTrue   []int
		want    float64
		wantErr bool
	}{
		{name: "all correct", yPred: []int{0, 1, 2}, yTrue: []int{0, 1, 2}, want: 100},
		{name: "one of four wrong", yPred: []int{0, 1, 2, 1}, yTrue: []int{0, 1, 2, 0}, want: 75},
		{name: "all wrong", yPred: []int{1, 1}, yTrue: []int{0, 0}, want: 0},
		{name: "length mismatch", yPred: []int{0}, yTrue: []int{0, 1}, wantErr: true},
		{name: "no epochs", yPred: []int{}, yTrue: []int{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.yPred, tt.yTrue)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, ArgMax([]float64{0.5, 0.5}), "lowest index wins ties")
	assert.Equal(t, 1, ArgMax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 0, ArgMax(nil))
}

func TestNewDerivedRecord(t *testing.T) {
	truth := []int{0, 1, 2, 3}
	rec, err := NewDerivedRecord("s1", ModelMajorityVote, truth, []int{0, 1, 2, 4})
	require.NoError(t, err)

	assert.Equal(t, "s1", rec.SubjectID)
	assert.Equal(t, ModelMajorityVote, rec.ModelID)
	assert.InDelta(t, 75.0, rec.Accuracy, 1e-9)
	assert.False(t, rec.HasProbs())

	truth[0] = 4
	assert.Equal(t, 0, rec.YTrue[0], "ground truth must be copied")

	_, err = NewDerivedRecord("s1", "m", truth, []int{0})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func validRecord() ResultRecord {
	return ResultRecord{
		SubjectID: "s1",
		ModelID:   "m1",
		YTrue:     []int{0, 1, 4},
		YPred:     []int{0, 2, 4},
		Accuracy:  100 * 2.0 / 3.0,
		Probs:     [][]float64{{1, 0, 0, 0, 0}, {0, 0, 1, 0, 0}, {0, 0, 0, 0, 1}},
		Attention: []float64{0.1, 0.5, 0.9},
	}
}

func TestResultRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResultRecord)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ResultRecord) {}},
		{name: "without optional fields", mutate: func(r *ResultRecord) { r.Probs, r.Attention = nil, nil }},
		{name: "prediction length", mutate: func(r *ResultRecord) { r.YPred = r.YPred[:2] }, wantErr: true},
		{name: "negative label", mutate: func(r *ResultRecord) { r.YTrue[0] = -1 }, wantErr: true},
		{name: "label out of range", mutate: func(r *ResultRecord) { r.YPred[1] = NumClasses }, wantErr: true},
		{name: "accuracy above 100", mutate: func(r *ResultRecord) { r.Accuracy = 100.5 }, wantErr: true},
		{name: "accuracy NaN", mutate: func(r *ResultRecord) { r.Accuracy = math.NaN() }, wantErr: true},
		{name: "probs rows", mutate: func(r *ResultRecord) { r.Probs = r.Probs[:1] }, wantErr: true},
		{name: "probs columns", mutate: func(r *ResultRecord) { r.Probs[2] = []float64{1} }, wantErr: true},
		{name: "attention length", mutate: func(r *ResultRecord) { r.Attention = []float64{0.5} }, wantErr: true},
		{name: "attention bounds inclusive", mutate: func(r *ResultRecord) { r.Attention = []float64{0, 1, 0.5} }},
		{name: "attention above 1", mutate: func(r *ResultRecord) { r.Attention[1] = 1.2 }, wantErr: true},
		{name: "attention negative", mutate: func(r *ResultRecord) { r.Attention[0] = -0.1 }, wantErr: true},
		{name: "attention NaN", mutate: func(r *ResultRecord) { r.Attention[2] = math.NaN() }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate(NumClasses)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResultRecord_Clone(t *testing.T) {
	rec := validRecord()
	rec.ExpertChannels = []string{"EEG"}
	rec.YExperts = [][][]float64{{{1, 0}}, {{0, 1}}, {{1, 0}}}
	rec.ExpertAttention = [][]float64{{1}, {1}, {1}}

	c := rec.Clone()
	assert.Equal(t, rec, c)

	c.YTrue[0] = 3
	c.Probs[0][0] = 0
	c.YExperts[0][0][0] = 0
	c.ExpertAttention[0][0] = 0
	c.Attention[0] = 0
	assert.Equal(t, 0, rec.YTrue[0])
	assert.Equal(t, 1.0, rec.Probs[0][0])
	assert.Equal(t, 1.0, rec.YExperts[0][0][0])
	assert.Equal(t, 1.0, rec.ExpertAttention[0][0])
	assert.Equal(t, 0.1, rec.Attention[0])

	bare := testRecordWithoutOptionals()
	clone := bare.Clone()
	assert.False(t, clone.HasProbs())
	assert.False(t, clone.HasExperts())
	assert.False(t, clone.HasAttention())
}

func testRecordWithoutOptionals() ResultRecord {
	rec := validRecord()
	rec.Probs, rec.Attention = nil, nil
	return rec
}

func TestResultRecord_Optionals(t *testing.T) {
	rec := validRecord()
	assert.Equal(t, 3, rec.Epochs())
	assert.True(t, rec.HasProbs())
	assert.True(t, rec.HasAttention())
	assert.False(t, rec.HasExperts())
	assert.False(t, rec.HasExpertAttention())
	assert.Equal(t, []int{1}, rec.WrongEpochs())

	mean, err := rec.MeanAttention()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mean, 1e-9)

	rec.Attention = nil
	_, err = rec.MeanAttention()
	assert.ErrorIs(t, err, ErrMissingData)

	rec.Attention = []float64{}
	_, err = rec.MeanAttention()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewHypnogramTrace(t *testing.T) {
	rec := validRecord()
	trace := NewHypnogramTrace(rec)

	assert.Equal(t, "s1", trace.Subject)
	assert.Equal(t, "m1", trace.Model)
	assert.Equal(t, rec.YTrue, trace.YTrue)
	assert.Equal(t, rec.YPred, trace.YPred)
	assert.Equal(t, []int{1}, trace.WrongEpochs)
	assert.Equal(t, rec.Attention, trace.Attention)
	assert.InDelta(t, rec.Accuracy, trace.Accuracy, 1e-9)
}

func TestValidateBundle(t *testing.T) {
	truth := []int{0, 1}
	a := ResultRecord{SubjectID: "s1", ModelID: "a", YTrue: truth, YPred: []int{0, 0}}
	b := ResultRecord{SubjectID: "s1", ModelID: "b", YTrue: []int{0, 1}, YPred: []int{1, 1}}

	assert.NoError(t, ValidateBundle([]ResultRecord{a, b}))
	assert.ErrorIs(t, ValidateBundle(nil), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBundle([]ResultRecord{{ModelID: "empty"}}), ErrInvalidInput)

	b.YTrue = []int{1, 1}
	err := ValidateBundle([]ResultRecord{a, b})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `"b"`)

	b.YTrue = truth
	b.YPred = []int{1}
	assert.ErrorIs(t, ValidateBundle([]ResultRecord{a, b}), ErrInvalidInput)

	assert.Equal(t, [][]int{{0, 0}, {1}}, BundlePredictions([]ResultRecord{a, b}))
}

package domain

// HypnogramTrace is the data behind one hypnogram panel: a model's
// predicted stage sequence for a subject against the ground truth.
type HypnogramTrace struct {
	Subject     string    `json:"subject"`
	Model       string    `json:"model"`
	YTrue       []int     `json:"y_true"`
	YPred       []int     `json:"y_pred"`
	WrongEpochs []int     `json:"wrong_epochs"`
	Accuracy    float64   `json:"acc"`
	Attention   []float64 `json:"attention,omitempty"`
}

// NewHypnogramTrace derives a trace from a record.
func NewHypnogramTrace(r ResultRecord) HypnogramTrace {
	return HypnogramTrace{
		Subject:     r.SubjectID,
		Model:       r.ModelID,
		YTrue:       r.YTrue,
		YPred:       r.YPred,
		WrongEpochs: r.WrongEpochs(),
		Accuracy:    r.Accuracy,
		Attention:   r.Attention,
	}
}

package domain

// Voter defines the interface for combining several base models' records
// for one subject into a single ensemble record.
// Implementations provide different voting strategies such as soft
// voting over probabilities, hard majority voting, or the oracle upper
// bound.
type Voter interface {
	// Vote combines the bundle into an ensemble prediction.
	// Every record in bundle must belong to the same subject and share an
	// identical ground-truth sequence.
	//
	// Returns:
	//   - ResultRecord: the ensemble record, with ModelID set to the voter's
	//     pseudo-model and Accuracy recomputed from its predictions
	//   - error: ErrInvalidInput for empty or misaligned bundles,
	//     ErrMissingData when a required optional field is absent
	//
	// Example:
	//
	//	bundle := []ResultRecord{recA, recB, recC}
	//	ensemble, err := voter.Vote(bundle)
	Vote(bundle []ResultRecord) (ResultRecord, error)
}

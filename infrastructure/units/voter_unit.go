package units

import (
	"context"
	"fmt"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// executeVoter runs voter against the subject bundle stored in state and
// appends the resulting ensemble record to domain.KeyEnsembles.
func executeVoter(ctx context.Context, name string, voter domain.Voter, state domain.State) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}

	bundle, err := state.Bundle()
	if err != nil {
		return state, fmt.Errorf("%s: %w", name, err)
	}

	ensemble, err := voter.Vote(bundle)
	if err != nil {
		subject, _ := domain.Get(state, domain.KeySubject)
		return state, domain.NewRecordError(subject, "", name, err)
	}

	return state.AppendEnsemble(ensemble), nil
}

// ensembleRecord wraps a vote's predictions into a derived record for the
// bundle's subject.
func ensembleRecord(model string, bundle []domain.ResultRecord, pred []int) (domain.ResultRecord, error) {
	return domain.NewDerivedRecord(bundle[0].SubjectID, model, bundle[0].YTrue, pred)
}

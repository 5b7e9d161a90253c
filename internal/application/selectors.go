package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// ErrUnknownModel is returned when a requested model is not present in the
// experiment directory.
var ErrUnknownModel = errors.New("unknown model")

// SelectModels restricts available to the requested models, preserving the
// requested order. An empty request selects every available model.
// Unknown names fail with ErrUnknownModel and, when a close match exists,
// a suggestion.
func SelectModels(available, requested []string) ([]string, error) {
	requested = lo.Uniq(lo.Filter(lo.Map(requested, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}), func(s string, _ int) bool { return s != "" }))
	if len(requested) == 0 {
		return append([]string(nil), available...), nil
	}

	for _, name := range requested {
		if lo.Contains(available, name) {
			continue
		}
		if suggestion, ok := SuggestModel(name, available); ok {
			return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownModel, name, suggestion)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return requested, nil
}

// SuggestModel returns the available model closest to name by Levenshtein
// distance, compared after Unicode case folding. Matches further than a third of
// the name's length (at least 2 edits) are not suggested.
func SuggestModel(name string, available []string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}

	fold := cases.Fold()
	folded := fold.String(name)
	best := lo.MinBy(available, func(a, b string) bool {
		return levenshtein.ComputeDistance(folded, fold.String(a)) <
			levenshtein.ComputeDistance(folded, fold.String(b))
	})

	limit := max(2, len([]rune(name))/3)
	if levenshtein.ComputeDistance(folded, fold.String(best)) > limit {
		return "", false
	}
	return best, true
}

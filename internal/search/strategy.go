// Package search implements the parameter-proposal side of a study: the
// strategies that suggest the next trial's assignment and the lightweight
// surrogate model behind the Bayesian strategy.
package search

import (
	"fmt"

	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// Strategy proposes the next trial's parameters. Suggest returns one full
// assignment covering every spec, given the assignments already tried.
type Strategy interface {
	Kind() config.StrategyKind
	Suggest(specs []config.ParameterSpec, prior []models.Assignment) (models.Assignment, error)
}

// New builds the strategy for a study. The surrogate is required by the
// Bayesian strategy and ignored by the others; the orchestrator owns it so
// completed trials can feed observations back in.
func New(kind config.StrategyKind, maximize bool, rng *utils.RandSource, surrogate *Surrogate) (Strategy, error) {
	random := NewRandom(rng)
	switch kind {
	case config.StrategyRandom:
		return random, nil
	case config.StrategyGrid:
		return NewGrid(random), nil
	case config.StrategyBayesian:
		if surrogate == nil {
			return nil, fmt.Errorf("bayesian strategy requires a surrogate")
		}
		return NewBayesian(random, surrogate, maximize), nil
	case config.StrategyHyperband:
		return NewHyperband(random), nil
	}
	return nil, fmt.Errorf("unknown search strategy: %q", kind)
}

// NumericVector converts an assignment into the ordered numeric vector the
// surrogate operates on, one component per spec in declaration order. The
// second return is false when any parameter is missing or non-numeric.
func NumericVector(specs []config.ParameterSpec, asg models.Assignment) ([]float64, bool) {
	vec := make([]float64, 0, len(specs))
	for i := range specs {
		v, ok := asg[specs[i].Name]
		if !ok {
			return nil, false
		}
		f, ok := v.Numeric()
		if !ok {
			return nil, false
		}
		vec = append(vec, f)
	}
	return vec, true
}

package search

import (
	"math"

	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
)

const (
	// bootstrapObservations is how many observations the surrogate needs
	// before candidate ranking replaces plain random sampling.
	bootstrapObservations = 5

	// candidateDraws is the number of random candidates ranked per
	// suggestion.
	candidateDraws = 100
)

// Bayesian ranks random candidates by Expected Improvement under the
// study's surrogate. Until the surrogate has enough observations it behaves
// exactly like Random.
type Bayesian struct {
	random    *Random
	surrogate *Surrogate
	maximize  bool
}

// NewBayesian creates a Bayesian strategy driven by the given surrogate.
func NewBayesian(random *Random, surrogate *Surrogate, maximize bool) *Bayesian {
	return &Bayesian{
		random:    random,
		surrogate: surrogate,
		maximize:  maximize,
	}
}

// Kind identifies the strategy.
func (b *Bayesian) Kind() config.StrategyKind {
	return config.StrategyBayesian
}

// Suggest draws candidateDraws random assignments, predicts each with the
// surrogate, and returns the one with the highest Expected Improvement.
// Ties keep the first candidate found.
func (b *Bayesian) Suggest(specs []config.ParameterSpec, prior []models.Assignment) (models.Assignment, error) {
	if b.surrogate.Len() < bootstrapObservations {
		return b.random.Suggest(specs, prior)
	}
	best, ok := b.surrogate.BestScore(b.maximize)
	if !ok {
		return b.random.Suggest(specs, prior)
	}

	var chosen models.Assignment
	bestEI := math.Inf(-1)
	for i := 0; i < candidateDraws; i++ {
		candidate, err := b.random.Suggest(specs, nil)
		if err != nil {
			return nil, err
		}
		vec, ok := NumericVector(specs, candidate)
		if !ok {
			continue
		}
		mean, spread := b.surrogate.Predict(vec)
		ei := ExpectedImprovement(mean, spread, best, b.maximize)
		if ei > bestEI {
			bestEI = ei
			chosen = candidate
		}
	}
	if chosen == nil {
		// No candidate vectorized; only possible with non-numeric specs.
		return b.random.Suggest(specs, prior)
	}
	return chosen, nil
}

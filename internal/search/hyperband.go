package search

import (
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
)

// Hyperband is a placeholder that delegates to Random. A genuine
// multi-fidelity bandit would need budget-aware trial scheduling and early
// discards, which the sequential control loop does not provide.
type Hyperband struct {
	random *Random
}

// NewHyperband creates the hyperband placeholder.
func NewHyperband(random *Random) *Hyperband {
	return &Hyperband{random: random}
}

// Kind identifies the strategy.
func (h *Hyperband) Kind() config.StrategyKind {
	return config.StrategyHyperband
}

// Suggest delegates to the random strategy.
func (h *Hyperband) Suggest(specs []config.ParameterSpec, prior []models.Assignment) (models.Assignment, error) {
	return h.random.Suggest(specs, prior)
}

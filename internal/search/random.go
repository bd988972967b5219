package search

import (
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// Random samples every spec independently.
type Random struct {
	rng *utils.RandSource
}

// NewRandom creates a random strategy over the given source.
func NewRandom(rng *utils.RandSource) *Random {
	return &Random{rng: rng}
}

// Kind identifies the strategy.
func (r *Random) Kind() config.StrategyKind {
	return config.StrategyRandom
}

// Suggest draws one value per spec; prior history is ignored.
func (r *Random) Suggest(specs []config.ParameterSpec, _ []models.Assignment) (models.Assignment, error) {
	asg := make(models.Assignment, len(specs))
	for i := range specs {
		asg[specs[i].Name] = specs[i].Sample(r.rng)
	}
	return asg, nil
}

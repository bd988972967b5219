package search

import (
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
)

// Grid walks the cartesian product of every spec's grid values in
// spec-declaration order, skipping combinations already present in the
// study's history. Once the product is exhausted it falls back to random
// draws.
type Grid struct {
	random *Random
}

// NewGrid creates a grid strategy with the given random fallback.
func NewGrid(random *Random) *Grid {
	return &Grid{random: random}
}

// Kind identifies the strategy.
func (g *Grid) Kind() config.StrategyKind {
	return config.StrategyGrid
}

// Suggest returns the first untried product combination, enumerated with the
// last spec varying fastest as nested iteration would. Exact value-for-value
// matches against prior assignments count as tried.
func (g *Grid) Suggest(specs []config.ParameterSpec, prior []models.Assignment) (models.Assignment, error) {
	grids := make([][]models.Value, len(specs))
	for i := range specs {
		grids[i] = specs[i].GridValues()
		if len(grids[i]) == 0 {
			return g.random.Suggest(specs, prior)
		}
	}

	indexes := make([]int, len(specs))
	for {
		asg := make(models.Assignment, len(specs))
		for i := range specs {
			asg[specs[i].Name] = grids[i][indexes[i]]
		}
		if !tried(asg, prior) {
			return asg, nil
		}

		// Advance the odometer, least-significant position last.
		pos := len(indexes) - 1
		for pos >= 0 {
			indexes[pos]++
			if indexes[pos] < len(grids[pos]) {
				break
			}
			indexes[pos] = 0
			pos--
		}
		if pos < 0 {
			// Every combination has been tried.
			return g.random.Suggest(specs, prior)
		}
	}
}

func tried(asg models.Assignment, prior []models.Assignment) bool {
	for _, p := range prior {
		if asg.Equal(p) {
			return true
		}
	}
	return false
}

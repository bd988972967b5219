package search

import (
	"math"
	"sync"
)

// distanceFloor keeps weights finite when a candidate coincides with an
// observed point.
const distanceFloor = 0.01

// Observation is one completed trial reduced to its numeric parameter vector
// and score.
type Observation struct {
	Vector []float64 `json:"vector"`
	Score  float64   `json:"score"`
}

// Surrogate is the per-study cache of observations behind the Bayesian
// strategy: a distance-weighted nearest-neighbor model standing in for a
// full probabilistic model of the objective surface. Safe for concurrent
// use.
type Surrogate struct {
	mu           sync.RWMutex
	dim          int
	observations []Observation
}

// NewSurrogate creates an empty surrogate over vectors of the given length.
func NewSurrogate(dim int) *Surrogate {
	return &Surrogate{dim: dim}
}

// Observe records one completed trial. Vectors whose length does not match
// the study's parameter count are dropped, which excludes trials carrying
// categorical or boolean parameters.
func (s *Surrogate) Observe(vector []float64, score float64) {
	if len(vector) != s.dim {
		return
	}
	vec := make([]float64, len(vector))
	copy(vec, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = append(s.observations, Observation{Vector: vec, Score: score})
}

// Len returns the number of recorded observations.
func (s *Surrogate) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations)
}

// BestScore returns the best observed score so far in the given direction.
// The second return is false when no observations exist.
func (s *Surrogate) BestScore(maximize bool) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.observations) == 0 {
		return 0, false
	}
	best := s.observations[0].Score
	for _, obs := range s.observations[1:] {
		if maximize && obs.Score > best {
			best = obs.Score
		} else if !maximize && obs.Score < best {
			best = obs.Score
		}
	}
	return best, true
}

// Predict estimates the score at x as a distance-weighted average of the
// observed scores, with a spread term reflecting the weighted score
// dispersion around that mean. Points close to good observations get means
// near those scores; far points inherit a blend of everything seen.
func (s *Surrogate) Predict(x []float64) (mean, spread float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.observations) == 0 {
		return 0, 1
	}

	weights := make([]float64, len(s.observations))
	var weightSum float64
	for i, obs := range s.observations {
		d := euclidean(x, obs.Vector)
		weights[i] = 1.0 / (math.Sqrt(d) + distanceFloor)
		weightSum += weights[i]
	}

	for i, obs := range s.observations {
		mean += weights[i] * obs.Score
	}
	mean /= weightSum

	var dispersion float64
	for i, obs := range s.observations {
		diff := obs.Score - mean
		dispersion += weights[i] * diff * diff
	}
	dispersion /= weightSum

	spread = math.Sqrt(dispersion + distanceFloor)
	return mean, spread
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// ExpectedImprovement scores a candidate prediction against the best
// observed score: the expected gain of evaluating it, combining how likely
// and how large an improvement would be.
func ExpectedImprovement(mean, spread, best float64, maximize bool) float64 {
	improvement := mean - best
	if !maximize {
		improvement = best - mean
	}
	z := improvement / spread
	return improvement*normalCDF(z) + spread*normalPDF(z)
}

// normalCDF is the standard normal CDF via the error function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// normalPDF is the standard normal density.
func normalPDF(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}

package utils

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandSource is a thread-safe random number generator used for parameter
// sampling. A seed of 0 selects a time-based seed.
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// Int63n returns a random int64 in [0, n)
func (r *RandSource) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int63n(n)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.NormFloat64()*stddev + mean
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rng.Float64()*(max-min)
}

// LogUniformFloat64 returns a log-uniformly distributed random number in
// [min, max). Both bounds must be positive.
func (r *RandSource) LogUniformFloat64(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo := math.Log(min)
	hi := math.Log(max)
	return math.Exp(lo + r.rng.Float64()*(hi-lo))
}

package tuned

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tunelab/tuning-core/internal/study"
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
)

// memStore is an in-memory Store recording every save.
type memStore struct {
	mu      sync.Mutex
	studies []*study.Study
	saves   int
	saveErr error
}

func (m *memStore) Save(studies []*study.Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.studies = studies
	m.saves++
	return nil
}

func (m *memStore) Load() ([]*study.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.studies, nil
}

func (m *memStore) saved() []*study.Study {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.studies
}

// stubEvaluator scores trials with a caller-supplied function, optionally
// sleeping first so pause can interrupt an evaluation in flight.
type stubEvaluator struct {
	latency time.Duration
	score   func(call int, params models.Assignment) (float64, error)

	mu    sync.Mutex
	calls int
}

func (s *stubEvaluator) Evaluate(ctx context.Context, params models.Assignment, _ config.TrainingConfig, objective config.Objective) (*EvalResult, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.latency):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	score, err := s.score(call, params)
	if err != nil {
		return nil, err
	}
	return &EvalResult{
		Score:   score,
		Metrics: map[string]float64{objective.MetricName(): score},
	}, nil
}

// scoreByX returns the sampled value of parameter "x" as the score.
func scoreByX(_ int, params models.Assignment) (float64, error) {
	v, ok := params["x"].Numeric()
	if !ok {
		return 0, fmt.Errorf("parameter x missing")
	}
	return v, nil
}

func testStudyConfig(maxTrials int) config.StudyConfig {
	return config.StudyConfig{
		Name:      "test-study",
		ModelID:   "model-1",
		Objective: config.ObjectiveMaximizeAccuracy,
		Strategy:  config.StrategyRandom,
		Parameters: []config.ParameterSpec{
			{Name: "x", Type: config.ParameterContinuous, Min: 0, Max: 1},
		},
		MaxTrials: maxTrials,
		Base:      config.DefaultTrainingConfig(),
	}
}

func newTestOrchestrator(eval Evaluator) (*Orchestrator, *memStore) {
	store := &memStore{}
	return NewOrchestrator(store, eval, nil).WithSeed(42), store
}

// waitFor drains the event stream until an event of the wanted kind
// arrives.
func waitFor(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

// waitForTrials drains the stream until n trial-completed events were seen.
func waitForTrials(t *testing.T, events <-chan Event, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		waitFor(t, events, EventTrialCompleted)
	}
}

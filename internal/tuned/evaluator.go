package tuned

import (
	"context"
	"math"
	"time"

	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/logger"
	"github.com/tunelab/tuning-core/pkg/models"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// EvalResult is the outcome of one trial evaluation.
type EvalResult struct {
	Score   float64
	Metrics map[string]float64
}

// Evaluator executes one trial: the sampled parameters overlaid on the
// study's base config, producing a score and metrics. Implementations must
// honor context cancellation; the control loop cancels the context on
// pause.
type Evaluator interface {
	Evaluate(ctx context.Context, params models.Assignment, base config.TrainingConfig, objective config.Objective) (*EvalResult, error)
}

// SimulatedEvaluator is a pluggable stand-in for a real training backend: a
// smooth closed-form response surface over the training config plus seeded
// noise. Latency spaces trials out so cancellation has something to
// interrupt.
type SimulatedEvaluator struct {
	rng     *utils.RandSource
	latency time.Duration
}

// NewSimulatedEvaluator creates a simulated evaluator. Latency may be zero.
func NewSimulatedEvaluator(rng *utils.RandSource, latency time.Duration) *SimulatedEvaluator {
	return &SimulatedEvaluator{rng: rng, latency: latency}
}

// Evaluate computes the simulated metrics for one trial.
func (e *SimulatedEvaluator) Evaluate(ctx context.Context, params models.Assignment, base config.TrainingConfig, objective config.Objective) (*EvalResult, error) {
	applied, diags := base.ApplyParameters(params)
	for _, d := range diags {
		logger.Warn("hyperparameter not applied", "detail", d)
	}

	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := e.simulate(applied)
	score, ok := metrics[objective.MetricName()]
	if !ok {
		score = metrics["accuracy"]
	}
	return &EvalResult{Score: score, Metrics: metrics}, nil
}

// simulate maps a training config onto a plausible metric surface: accuracy
// peaks near lr=3e-3 and batch 32, improves with epochs at a decaying rate,
// and every metric carries a little noise.
func (e *SimulatedEvaluator) simulate(cfg config.TrainingConfig) map[string]float64 {
	accuracy := 0.55

	if cfg.LearningRate > 0 {
		lrOffset := math.Log10(cfg.LearningRate) - math.Log10(3e-3)
		accuracy += 0.25 * math.Exp(-lrOffset*lrOffset/2)
	}
	if cfg.BatchSize > 0 {
		batchOffset := math.Log2(float64(cfg.BatchSize)) - 5
		accuracy += 0.08 * math.Exp(-batchOffset*batchOffset/8)
	}
	if cfg.Epochs > 0 {
		accuracy += 0.1 * (1 - math.Exp(-float64(cfg.Epochs)/20))
	}

	accuracy += e.rng.NormFloat64(0, 0.02)
	accuracy = utils.Clamp(accuracy, 0.01, 0.99)

	loss := -math.Log(accuracy)
	valLoss := loss * (1 + utils.Clamp(cfg.ValidationSplit, 0, 1)*0.2)
	f1 := utils.Clamp(accuracy-0.02+e.rng.NormFloat64(0, 0.01), 0.01, 0.99)

	return map[string]float64{
		"accuracy": accuracy,
		"loss":     loss,
		"val_loss": valLoss,
		"f1":       f1,
	}
}

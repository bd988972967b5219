package config

import "fmt"

// Objective identifies the metric and direction a study optimizes.
type Objective string

const (
	ObjectiveMinimizeLoss           Objective = "minimize-loss"
	ObjectiveMaximizeAccuracy       Objective = "maximize-accuracy"
	ObjectiveMinimizeValidationLoss Objective = "minimize-validation-loss"
	ObjectiveMaximizeF1             Objective = "maximize-f1"
)

// Maximize reports the optimization direction.
func (o Objective) Maximize() bool {
	switch o {
	case ObjectiveMaximizeAccuracy, ObjectiveMaximizeF1:
		return true
	}
	return false
}

// MetricName returns the canonical metric the objective reads.
func (o Objective) MetricName() string {
	switch o {
	case ObjectiveMinimizeLoss:
		return "loss"
	case ObjectiveMaximizeAccuracy:
		return "accuracy"
	case ObjectiveMinimizeValidationLoss:
		return "val_loss"
	case ObjectiveMaximizeF1:
		return "f1"
	}
	return ""
}

// Validate rejects unknown objectives.
func (o Objective) Validate() error {
	switch o {
	case ObjectiveMinimizeLoss, ObjectiveMaximizeAccuracy,
		ObjectiveMinimizeValidationLoss, ObjectiveMaximizeF1:
		return nil
	}
	return fmt.Errorf("unknown objective: %q", o)
}

// StrategyKind names a search strategy.
type StrategyKind string

const (
	StrategyGrid      StrategyKind = "grid"
	StrategyRandom    StrategyKind = "random"
	StrategyBayesian  StrategyKind = "bayesian"
	StrategyHyperband StrategyKind = "hyperband"
)

// Validate rejects unknown strategy kinds.
func (k StrategyKind) Validate() error {
	switch k {
	case StrategyGrid, StrategyRandom, StrategyBayesian, StrategyHyperband:
		return nil
	}
	return fmt.Errorf("unknown search strategy: %q", k)
}

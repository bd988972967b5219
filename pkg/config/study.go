package config

import (
	"fmt"
)

// StudyConfig is the immutable description of one hyperparameter search:
// what to optimize, how to search, over which parameters, and within which
// trial budget.
//
// ParallelTrials, PruningEnabled and the early-stopping fields are carried
// as forward-looking configuration surface: the control loop runs trials
// strictly sequentially and never prunes, so they have no enforced effect.
type StudyConfig struct {
	Name           string          `json:"name" yaml:"name"`
	ModelID        string          `json:"model_id" yaml:"model_id"`
	Objective      Objective       `json:"objective" yaml:"objective"`
	Strategy       StrategyKind    `json:"search_strategy" yaml:"search_strategy"`
	Parameters     []ParameterSpec `json:"parameters" yaml:"parameters"`
	MaxTrials      int             `json:"max_trials" yaml:"max_trials"`
	ParallelTrials int             `json:"parallel_trials,omitempty" yaml:"parallel_trials,omitempty"`
	Patience       int             `json:"patience,omitempty" yaml:"patience,omitempty"`
	MinDelta       float64         `json:"min_delta,omitempty" yaml:"min_delta,omitempty"`
	PruningEnabled bool            `json:"pruning_enabled,omitempty" yaml:"pruning_enabled,omitempty"`
	Base           TrainingConfig  `json:"base_config" yaml:"base_config"`
}

// Validate performs eager validation of the whole study configuration so
// that a misconfigured search is rejected at creation time instead of
// surfacing as an undefined sampling outcome mid-loop.
func (c *StudyConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("study name cannot be empty")
	}
	if err := c.Objective.Validate(); err != nil {
		return err
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.MaxTrials <= 0 {
		return fmt.Errorf("max_trials must be positive, got %d", c.MaxTrials)
	}
	if c.ParallelTrials < 0 {
		return fmt.Errorf("parallel_trials cannot be negative")
	}
	if len(c.Parameters) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	seen := make(map[string]bool, len(c.Parameters))
	for i := range c.Parameters {
		spec := &c.Parameters[i]
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate parameter name: %s", spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

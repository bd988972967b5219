package config

import (
	"fmt"
	"math"

	"github.com/tunelab/tuning-core/pkg/models"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// ParameterType classifies a tunable dimension.
type ParameterType string

const (
	ParameterContinuous  ParameterType = "continuous"
	ParameterDiscrete    ParameterType = "discrete"
	ParameterCategorical ParameterType = "categorical"
)

// ParameterScale selects the sampling scale for numeric parameters.
type ParameterScale string

const (
	ScaleLinear ParameterScale = "linear"
	ScaleLog    ParameterScale = "log"
)

// gridDivisions is the default number of steps when a continuous spec has no
// explicit step size, yielding up to gridDivisions+1 grid points.
const gridDivisions = 10

// ParameterSpec describes one tunable dimension of a search space. Exactly
// one of the bounds (Min/Max, numeric types) or Categories (categorical) is
// populated. Scale is meaningful only for continuous and discrete parameters.
type ParameterSpec struct {
	Name       string         `json:"name" yaml:"name"`
	Type       ParameterType  `json:"type" yaml:"type"`
	Scale      ParameterScale `json:"scale,omitempty" yaml:"scale,omitempty"`
	Min        float64        `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	Max        float64        `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	StepSize   float64        `json:"step_size,omitempty" yaml:"step_size,omitempty"`
	Categories []string       `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Validate checks the spec for misconfiguration. It is called eagerly at
// study creation so that sampling never sees an invalid spec.
func (s *ParameterSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	switch s.Type {
	case ParameterContinuous, ParameterDiscrete:
		if len(s.Categories) > 0 {
			return fmt.Errorf("parameter %s: categories are only valid for categorical type", s.Name)
		}
		if s.Min >= s.Max {
			return fmt.Errorf("parameter %s: min_value %g must be below max_value %g", s.Name, s.Min, s.Max)
		}
		if s.StepSize < 0 {
			return fmt.Errorf("parameter %s: step_size cannot be negative", s.Name)
		}
		if s.scale() == ScaleLog && s.Min <= 0 {
			return fmt.Errorf("parameter %s: log scale requires min_value > 0, got %g", s.Name, s.Min)
		}
	case ParameterCategorical:
		if len(s.Categories) == 0 {
			return fmt.Errorf("parameter %s: categorical type requires a non-empty categories list", s.Name)
		}
		if s.Min != 0 || s.Max != 0 || s.StepSize != 0 {
			return fmt.Errorf("parameter %s: bounds are only valid for numeric types", s.Name)
		}
	default:
		return fmt.Errorf("parameter %s: unknown type %q", s.Name, s.Type)
	}
	return nil
}

func (s *ParameterSpec) scale() ParameterScale {
	if s.Scale == "" {
		return ScaleLinear
	}
	return s.Scale
}

func (s *ParameterSpec) step() float64 {
	if s.StepSize > 0 {
		return s.StepSize
	}
	return 1.0
}

// Sample draws a single value from the spec's domain.
//
// On a misconfigured categorical spec (empty list, rejected by Validate but
// reachable on hand-built specs) the deterministic fallback is the zero
// string value.
func (s *ParameterSpec) Sample(rng *utils.RandSource) models.Value {
	switch s.Type {
	case ParameterContinuous:
		if s.scale() == ScaleLog {
			return models.FloatValue(rng.LogUniformFloat64(s.Min, s.Max))
		}
		return models.FloatValue(rng.UniformFloat64(s.Min, s.Max))
	case ParameterDiscrete:
		step := s.step()
		steps := int(math.Floor((s.Max - s.Min) / step))
		k := rng.Intn(steps + 1)
		return models.IntValue(int64(math.Round(s.Min + float64(k)*step)))
	case ParameterCategorical:
		if len(s.Categories) == 0 {
			return models.StringValue("")
		}
		return models.StringValue(s.Categories[rng.Intn(len(s.Categories))])
	}
	return models.StringValue("")
}

// GridValues deterministically enumerates the spec's domain for the grid
// strategy. Continuous specs without a step size are divided into ten steps.
//
// The `current <= max` float accumulation can include or exclude the upper
// bound depending on rounding; the behavior is kept as-is rather than
// epsilon-adjusted.
func (s *ParameterSpec) GridValues() []models.Value {
	switch s.Type {
	case ParameterContinuous:
		step := s.StepSize
		if step <= 0 {
			step = (s.Max - s.Min) / gridDivisions
		}
		values := make([]models.Value, 0, gridDivisions+1)
		for v := s.Min; v <= s.Max; v += step {
			values = append(values, models.FloatValue(v))
		}
		return values
	case ParameterDiscrete:
		step := s.step()
		values := make([]models.Value, 0)
		for v := s.Min; v <= s.Max; v += step {
			values = append(values, models.IntValue(int64(math.Round(v))))
		}
		return values
	case ParameterCategorical:
		values := make([]models.Value, 0, len(s.Categories))
		for _, c := range s.Categories {
			values = append(values, models.StringValue(c))
		}
		return values
	}
	return nil
}

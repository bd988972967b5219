package config

import (
	"fmt"

	"github.com/tunelab/tuning-core/pkg/models"
)

// OptimizerKind identifies a training optimizer.
type OptimizerKind string

const (
	OptimizerSGD     OptimizerKind = "sgd"
	OptimizerAdam    OptimizerKind = "adam"
	OptimizerAdamW   OptimizerKind = "adamw"
	OptimizerRMSProp OptimizerKind = "rmsprop"
)

// parseOptimizer resolves a string to a known optimizer identifier.
func parseOptimizer(s string) (OptimizerKind, bool) {
	switch OptimizerKind(s) {
	case OptimizerSGD, OptimizerAdam, OptimizerAdamW, OptimizerRMSProp:
		return OptimizerKind(s), true
	}
	return "", false
}

// TrainingConfig is the base training configuration a study mutates per
// trial. It is the unit handed to the trial evaluator.
type TrainingConfig struct {
	LearningRate    float64       `json:"learning_rate" yaml:"learning_rate"`
	BatchSize       int           `json:"batch_size" yaml:"batch_size"`
	Epochs          int           `json:"epochs" yaml:"epochs"`
	Optimizer       OptimizerKind `json:"optimizer" yaml:"optimizer"`
	ValidationSplit float64       `json:"validation_split" yaml:"validation_split"`
	Patience        int           `json:"patience" yaml:"patience"`
}

// DefaultTrainingConfig returns a usable starting configuration.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		LearningRate:    1e-3,
		BatchSize:       32,
		Epochs:          10,
		Optimizer:       OptimizerAdam,
		ValidationSplit: 0.2,
		Patience:        5,
	}
}

// TunableField is one member of the closed set of parameter names that map
// onto TrainingConfig fields.
type TunableField string

const (
	FieldLearningRate    TunableField = "learningRate"
	FieldBatchSize       TunableField = "batchSize"
	FieldEpochs          TunableField = "epochs"
	FieldOptimizer       TunableField = "optimizer"
	FieldValidationSplit TunableField = "validationSplit"
	FieldPatience        TunableField = "patience"
)

// applyField writes one sampled value into the config. It returns an error
// when the value cannot serve the named field, such as a non-numeric
// learning rate or an optimizer string that resolves to nothing.
func (c *TrainingConfig) applyField(field TunableField, v models.Value) error {
	switch field {
	case FieldLearningRate:
		f, ok := v.Numeric()
		if !ok {
			return fmt.Errorf("learningRate requires a numeric value, got %s", v.Kind)
		}
		c.LearningRate = f
	case FieldBatchSize:
		f, ok := v.Numeric()
		if !ok {
			return fmt.Errorf("batchSize requires a numeric value, got %s", v.Kind)
		}
		c.BatchSize = int(f)
	case FieldEpochs:
		f, ok := v.Numeric()
		if !ok {
			return fmt.Errorf("epochs requires a numeric value, got %s", v.Kind)
		}
		c.Epochs = int(f)
	case FieldOptimizer:
		if v.Kind != models.KindString {
			return fmt.Errorf("optimizer requires a string value, got %s", v.Kind)
		}
		opt, ok := parseOptimizer(v.Str)
		if !ok {
			return fmt.Errorf("unknown optimizer: %q", v.Str)
		}
		c.Optimizer = opt
	case FieldValidationSplit:
		f, ok := v.Numeric()
		if !ok {
			return fmt.Errorf("validationSplit requires a numeric value, got %s", v.Kind)
		}
		c.ValidationSplit = f
	case FieldPatience:
		f, ok := v.Numeric()
		if !ok {
			return fmt.Errorf("patience requires a numeric value, got %s", v.Kind)
		}
		c.Patience = int(f)
	default:
		return fmt.Errorf("unknown tunable field: %q", field)
	}
	return nil
}

// ApplyParameters overlays a trial's sampled assignment onto a copy of the
// base config. Parameter names outside the tunable set, and values a field
// cannot accept, are returned as diagnostics rather than silently dropped;
// the overlay proceeds with the remaining parameters either way.
func (c TrainingConfig) ApplyParameters(params models.Assignment) (TrainingConfig, []string) {
	out := c
	var diags []string
	for _, field := range []TunableField{
		FieldLearningRate, FieldBatchSize, FieldEpochs,
		FieldOptimizer, FieldValidationSplit, FieldPatience,
	} {
		v, ok := params[string(field)]
		if !ok {
			continue
		}
		if err := out.applyField(field, v); err != nil {
			diags = append(diags, err.Error())
		}
	}
	for name := range params {
		if !isTunableField(name) {
			diags = append(diags, fmt.Sprintf("parameter %q does not map to any training field", name))
		}
	}
	return out, diags
}

func isTunableField(name string) bool {
	switch TunableField(name) {
	case FieldLearningRate, FieldBatchSize, FieldEpochs,
		FieldOptimizer, FieldValidationSplit, FieldPatience:
		return true
	}
	return false
}

package config

import (
	"strings"
	"testing"

	"github.com/tunelab/tuning-core/pkg/models"
)

func validStudyConfig() StudyConfig {
	return StudyConfig{
		Name:      "lr-sweep",
		ModelID:   "model-1",
		Objective: ObjectiveMaximizeAccuracy,
		Strategy:  StrategyRandom,
		Parameters: []ParameterSpec{
			{Name: "learningRate", Type: ParameterContinuous, Scale: ScaleLog, Min: 1e-5, Max: 1e-1},
			{Name: "batchSize", Type: ParameterDiscrete, Min: 8, Max: 128, StepSize: 8},
		},
		MaxTrials: 20,
		Base:      DefaultTrainingConfig(),
	}
}

func TestStudyConfigValidate(t *testing.T) {
	cfg := validStudyConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*StudyConfig)
	}{
		{"empty name", func(c *StudyConfig) { c.Name = "" }},
		{"bad objective", func(c *StudyConfig) { c.Objective = "maximize-fun" }},
		{"bad strategy", func(c *StudyConfig) { c.Strategy = "simulated-annealing" }},
		{"zero budget", func(c *StudyConfig) { c.MaxTrials = 0 }},
		{"negative parallel", func(c *StudyConfig) { c.ParallelTrials = -1 }},
		{"no parameters", func(c *StudyConfig) { c.Parameters = nil }},
		{"dup parameter", func(c *StudyConfig) {
			c.Parameters = append(c.Parameters, c.Parameters[0])
		}},
		{"invalid spec", func(c *StudyConfig) {
			c.Parameters[0].Min = -1
		}},
	}
	for _, tc := range cases {
		c := validStudyConfig()
		tc.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestObjectiveDirectionAndMetric(t *testing.T) {
	cases := []struct {
		obj      Objective
		maximize bool
		metric   string
	}{
		{ObjectiveMinimizeLoss, false, "loss"},
		{ObjectiveMaximizeAccuracy, true, "accuracy"},
		{ObjectiveMinimizeValidationLoss, false, "val_loss"},
		{ObjectiveMaximizeF1, true, "f1"},
	}
	for _, tc := range cases {
		if tc.obj.Maximize() != tc.maximize {
			t.Fatalf("%s: Maximize() = %t", tc.obj, tc.obj.Maximize())
		}
		if tc.obj.MetricName() != tc.metric {
			t.Fatalf("%s: MetricName() = %q", tc.obj, tc.obj.MetricName())
		}
		if err := tc.obj.Validate(); err != nil {
			t.Fatalf("%s: %v", tc.obj, err)
		}
	}
}

func TestApplyParameters(t *testing.T) {
	base := DefaultTrainingConfig()
	applied, diags := base.ApplyParameters(models.Assignment{
		"learningRate":    models.FloatValue(0.01),
		"batchSize":       models.IntValue(64),
		"epochs":          models.IntValue(30),
		"optimizer":       models.StringValue("sgd"),
		"validationSplit": models.FloatValue(0.1),
		"patience":        models.IntValue(3),
	})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if applied.LearningRate != 0.01 || applied.BatchSize != 64 || applied.Epochs != 30 {
		t.Fatalf("numeric fields not applied: %+v", applied)
	}
	if applied.Optimizer != OptimizerSGD || applied.ValidationSplit != 0.1 || applied.Patience != 3 {
		t.Fatalf("remaining fields not applied: %+v", applied)
	}
	// The receiver is not mutated.
	if base.LearningRate != 1e-3 {
		t.Fatalf("base config was mutated: %+v", base)
	}
}

func TestApplyParametersDiagnostics(t *testing.T) {
	base := DefaultTrainingConfig()

	applied, diags := base.ApplyParameters(models.Assignment{
		"learningRate": models.FloatValue(0.05),
		"momentum":     models.FloatValue(0.9),
		"optimizer":    models.StringValue("quantum"),
	})
	if applied.LearningRate != 0.05 {
		t.Fatalf("known parameter not applied alongside diagnostics")
	}
	if applied.Optimizer != base.Optimizer {
		t.Fatalf("unresolvable optimizer should leave the base value")
	}
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", diags)
	}
	joined := strings.Join(diags, "; ")
	if !strings.Contains(joined, "momentum") || !strings.Contains(joined, "quantum") {
		t.Fatalf("diagnostics missing detail: %v", diags)
	}
}

func TestParseStudyYAML(t *testing.T) {
	doc := `
name: batch-sweep
model_id: model-7
objective: minimize-validation-loss
search_strategy: grid
max_trials: 12
parameters:
  - name: batchSize
    type: discrete
    min_value: 16
    max_value: 64
    step_size: 16
  - name: optimizer
    type: categorical
    categories: [sgd, adam]
base_config:
  learning_rate: 0.001
  batch_size: 32
  epochs: 10
  optimizer: adam
  validation_split: 0.2
  patience: 5
`
	cfg, err := ParseStudyYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ParseStudyYAML error: %v", err)
	}
	if cfg.Name != "batch-sweep" || cfg.Strategy != StrategyGrid {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.Parameters) != 2 || cfg.Parameters[1].Categories[1] != "adam" {
		t.Fatalf("parameters not parsed: %+v", cfg.Parameters)
	}
	if cfg.Base.LearningRate != 0.001 {
		t.Fatalf("base config not parsed: %+v", cfg.Base)
	}

	if _, err := ParseStudyYAML([]byte("name: [broken")); err == nil {
		t.Fatalf("expected YAML error")
	}
	if _, err := ParseStudyYAML([]byte("name: x\nmax_trials: 0")); err == nil {
		t.Fatalf("expected validation error")
	}
}

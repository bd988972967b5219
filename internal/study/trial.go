// Package study holds the mutable aggregates of one hyperparameter search:
// the study record, its ordered trial list, and best-trial tracking. All
// mutation goes through the orchestrator's single-writer loop.
package study

import (
	"time"

	"github.com/tunelab/tuning-core/pkg/models"
)

// TrialStatus is the lifecycle state of a trial.
type TrialStatus string

const (
	TrialPending   TrialStatus = "pending"
	TrialRunning   TrialStatus = "running"
	TrialCompleted TrialStatus = "completed"
	TrialFailed    TrialStatus = "failed"
	// TrialPruned is reserved for a future pruning scheduler and is never
	// assigned by the current control loop.
	TrialPruned TrialStatus = "pruned"
)

// Terminal reports whether the status permits no further transitions.
func (s TrialStatus) Terminal() bool {
	switch s {
	case TrialCompleted, TrialFailed, TrialPruned:
		return true
	}
	return false
}

// Trial is one evaluated parameter assignment. Number is 0-based and unique
// within the owning study. A trial is never mutated once terminal.
type Trial struct {
	ID         string             `json:"id"`
	StudyID    string             `json:"study_id"`
	Number     int                `json:"number"`
	Parameters models.Assignment  `json:"parameters"`
	Status     TrialStatus        `json:"status"`
	Score      *float64           `json:"score,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	EndedAt    *time.Time         `json:"ended_at,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// MarkRunning transitions pending -> running and stamps the start time.
func (t *Trial) MarkRunning(now time.Time) {
	if t.Status.Terminal() {
		return
	}
	t.Status = TrialRunning
	t.StartedAt = &now
}

// MarkCompleted transitions running -> completed with the evaluation result.
func (t *Trial) MarkCompleted(score float64, metrics map[string]float64, now time.Time) {
	if t.Status.Terminal() {
		return
	}
	t.Status = TrialCompleted
	t.Score = &score
	t.Metrics = metrics
	t.EndedAt = &now
}

// MarkFailed transitions running -> failed with the failure message.
func (t *Trial) MarkFailed(message string, now time.Time) {
	if t.Status.Terminal() {
		return
	}
	t.Status = TrialFailed
	t.Error = message
	t.EndedAt = &now
}

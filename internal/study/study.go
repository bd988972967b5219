package study

import (
	"time"

	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// Status is the lifecycle state of a study.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Study is the mutable aggregate for one search: immutable config, ordered
// append-only trial list, status and the best-trial reference.
type Study struct {
	ID          string             `json:"id"`
	Config      config.StudyConfig `json:"config"`
	Trials      []*Trial           `json:"trials"`
	Status      Status             `json:"status"`
	BestTrialID string             `json:"best_trial_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// New builds a fresh study for a validated config.
func New(id string, cfg config.StudyConfig, now time.Time) *Study {
	return &Study{
		ID:        id,
		Config:    cfg,
		Trials:    make([]*Trial, 0),
		Status:    StatusCreated,
		CreatedAt: now,
	}
}

// Trial returns the trial with the given id, or nil.
func (s *Study) Trial(id string) *Trial {
	for _, t := range s.Trials {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// BestTrial resolves the best-trial reference, or nil when unset.
func (s *Study) BestTrial() *Trial {
	if s.BestTrialID == "" {
		return nil
	}
	return s.Trial(s.BestTrialID)
}

// UpdateBest folds one completed trial into the best-trial reference.
// Strictly better scores replace the incumbent in the objective's
// direction; ties never replace. Returns true when the reference changed.
func (s *Study) UpdateBest(t *Trial) bool {
	if t == nil || t.Status != TrialCompleted || t.Score == nil {
		return false
	}
	current := s.BestTrial()
	if current == nil || current.Score == nil {
		s.BestTrialID = t.ID
		return true
	}
	if s.Config.Objective.Maximize() {
		if *t.Score > *current.Score {
			s.BestTrialID = t.ID
			return true
		}
		return false
	}
	if *t.Score < *current.Score {
		s.BestTrialID = t.ID
		return true
	}
	return false
}

// CompletedTrials counts trials in the completed state.
func (s *Study) CompletedTrials() int {
	n := 0
	for _, t := range s.Trials {
		if t.Status == TrialCompleted {
			n++
		}
	}
	return n
}

// Progress reports completed trials over the budget, in [0, 1].
func (s *Study) Progress() float64 {
	if s.Config.MaxTrials <= 0 {
		return 0
	}
	p := float64(s.CompletedTrials()) / float64(s.Config.MaxTrials)
	return utils.Clamp(p, 0.0, 1.0)
}

// Assignments returns every trial's parameter assignment in trial order,
// the history handed to the grid strategy for deduplication.
func (s *Study) Assignments() []models.Assignment {
	out := make([]models.Assignment, 0, len(s.Trials))
	for _, t := range s.Trials {
		out = append(out, t.Parameters)
	}
	return out
}

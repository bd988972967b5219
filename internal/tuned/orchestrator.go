package tuned

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tunelab/tuning-core/internal/search"
	"github.com/tunelab/tuning-core/internal/study"
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/logger"
	"github.com/tunelab/tuning-core/pkg/utils"
)

var (
	ErrStudyNotFound   = errors.New("study not found")
	ErrStudyRunning    = errors.New("study is already running")
	ErrStudyNotRunning = errors.New("study is not running")
	ErrStudyNotPaused  = errors.New("study is not paused")
)

// studyContext consolidates everything the orchestrator holds per study:
// the aggregate itself, its strategy and surrogate, the cooperative
// cancellation state and the event stream. Keeping these in one record
// under one lock prevents the parallel-map drift a flag map plus task map
// plus cache map would invite.
type studyContext struct {
	study     *study.Study
	strategy  search.Strategy
	surrogate *search.Surrogate // non-nil only for the bayesian strategy
	events    *broadcaster

	// cancelled is the cooperative pause flag, checked between trials.
	// cancel interrupts a suspended evaluation. done is closed when the
	// control loop exits. All three are guarded by the orchestrator lock.
	cancelled bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Orchestrator owns all studies and their control loops. Every running
// study gets one goroutine executing trials strictly sequentially; all
// shared state mutation is serialized through the orchestrator lock.
type Orchestrator struct {
	store     Store
	evaluator Evaluator
	metrics   *Metrics
	seed      int64

	mu       sync.Mutex
	studies  map[string]*studyContext
	order    []string // creation order, for stable listing
	activeID string   // most recently started study, for display
}

// NewOrchestrator creates an orchestrator over the given store and
// evaluator. Metrics may be nil.
func NewOrchestrator(store Store, evaluator Evaluator, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		store:     store,
		evaluator: evaluator,
		metrics:   metrics,
		studies:   make(map[string]*studyContext),
	}
}

// WithSeed fixes the sampling seed for every study's random source, for
// reproducible searches. Zero keeps time-based seeding.
func (o *Orchestrator) WithSeed(seed int64) *Orchestrator {
	o.seed = seed
	return o
}

// Load restores the persisted study list. Studies that were running when
// the process died are demoted to paused: no control loop survives a
// restart.
func (o *Orchestrator) Load() error {
	studies, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load studies: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, st := range studies {
		if st.Status == study.StatusRunning {
			st.Status = study.StatusPaused
		}
		sc, err := o.newStudyContext(st)
		if err != nil {
			logger.Error("skipping unloadable study", "study_id", st.ID, "error", err)
			continue
		}
		o.studies[st.ID] = sc
		o.order = append(o.order, st.ID)
	}
	logger.Info("studies loaded", "count", len(o.studies))
	return nil
}

// newStudyContext builds the per-study record, replaying completed trials
// into a fresh surrogate so a resumed bayesian study keeps its
// observations.
func (o *Orchestrator) newStudyContext(st *study.Study) (*studyContext, error) {
	var surrogate *search.Surrogate
	if st.Config.Strategy == config.StrategyBayesian {
		surrogate = search.NewSurrogate(len(st.Config.Parameters))
		for _, t := range st.Trials {
			if t.Status != study.TrialCompleted || t.Score == nil {
				continue
			}
			if vec, ok := search.NumericVector(st.Config.Parameters, t.Parameters); ok {
				surrogate.Observe(vec, *t.Score)
			}
		}
	}
	strategy, err := search.New(st.Config.Strategy, st.Config.Objective.Maximize(), utils.NewRandSource(o.seed), surrogate)
	if err != nil {
		return nil, err
	}
	return &studyContext{
		study:     st,
		strategy:  strategy,
		surrogate: surrogate,
		events:    newBroadcaster(),
	}, nil
}

// CreateStudy validates the config, creates the study and persists it.
func (o *Orchestrator) CreateStudy(cfg config.StudyConfig) (*study.Study, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study config: %w", err)
	}
	st := study.New(uuid.NewString(), cfg, time.Now().UTC())
	sc, err := o.newStudyContext(st)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.studies[st.ID] = sc
	o.order = append(o.order, st.ID)
	all := o.snapshotAllLocked()
	snap := snapshotStudy(st)
	o.mu.Unlock()

	o.saveBestEffort(all)
	logger.Info("study created", "study_id", st.ID, "name", cfg.Name,
		"strategy", cfg.Strategy, "max_trials", cfg.MaxTrials)
	return snap, nil
}

// StartStudy spawns the study's control loop. The loop picks up the trial
// numbering where the existing trial list ends, which makes resume free of
// renumbering.
func (o *Orchestrator) StartStudy(id string) error {
	o.mu.Lock()
	sc, ok := o.studies[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	if sc.cancel != nil {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyRunning, id)
	}

	now := time.Now().UTC()
	sc.study.Status = study.StatusRunning
	sc.study.StartedAt = &now
	sc.cancelled = false

	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel
	sc.done = make(chan struct{})
	o.activeID = id
	o.mu.Unlock()

	o.metrics.StudyStarted()
	logger.Info("study started", "study_id", id, "existing_trials", len(sc.study.Trials))
	go o.runLoop(ctx, sc)
	return nil
}

// runLoop executes trials sequentially until the budget is reached or the
// cancellation flag is observed. Each completed trial is persisted before
// the next one starts, so a crash loses at most the trial in flight.
func (o *Orchestrator) runLoop(ctx context.Context, sc *studyContext) {
	defer close(sc.done)
	defer o.metrics.StudyStopped()

	st := sc.study
	specs := st.Config.Parameters
	failed := false

	for {
		o.mu.Lock()
		if sc.cancelled || len(st.Trials) >= st.Config.MaxTrials {
			o.mu.Unlock()
			break
		}
		prior := st.Assignments()
		o.mu.Unlock()

		params, err := sc.strategy.Suggest(specs, prior)
		if err != nil {
			o.mu.Lock()
			st.Status = study.StatusFailed
			o.mu.Unlock()
			logger.Error("strategy failed", "study_id", st.ID, "error", err)
			failed = true
			break
		}

		started := time.Now().UTC()
		o.mu.Lock()
		trial := &study.Trial{
			ID:         uuid.NewString(),
			StudyID:    st.ID,
			Number:     len(st.Trials),
			Parameters: params,
			Status:     study.TrialPending,
		}
		st.Trials = append(st.Trials, trial)
		trial.MarkRunning(started)
		progress := st.Progress()
		o.mu.Unlock()

		sc.events.publish(Event{
			Kind:        EventTrialCreated,
			StudyID:     st.ID,
			TrialID:     trial.ID,
			TrialNumber: trial.Number,
			TrialStatus: string(study.TrialRunning),
			Progress:    progress,
			Time:        started,
		})

		result, err := o.evaluator.Evaluate(ctx, params, st.Config.Base, st.Config.Objective)
		ended := time.Now().UTC()

		o.mu.Lock()
		if err != nil && ctx.Err() != nil && sc.cancelled {
			// Pause interrupted the evaluation. Roll the trial back so
			// resume proposes this number again instead of recording a
			// phantom failure.
			st.Trials = st.Trials[:len(st.Trials)-1]
			o.mu.Unlock()
			logger.Info("trial rolled back on pause", "study_id", st.ID, "trial", trial.Number)
			break
		}
		if err != nil {
			trial.MarkFailed(err.Error(), ended)
			o.metrics.TrialFailed()
			logger.Warn("trial failed", "study_id", st.ID, "trial", trial.Number, "error", err)
		} else {
			trial.MarkCompleted(result.Score, result.Metrics, ended)
			if sc.surrogate != nil {
				if vec, ok := search.NumericVector(specs, params); ok {
					sc.surrogate.Observe(vec, result.Score)
				}
			}
			st.UpdateBest(trial)
			o.metrics.TrialCompleted(ended.Sub(started))
			logger.Info("trial completed", "study_id", st.ID, "trial", trial.Number, "score", result.Score)
		}
		progress = st.Progress()
		all := o.snapshotAllLocked()
		o.mu.Unlock()

		o.saveBestEffort(all)
		sc.events.publish(Event{
			Kind:        EventTrialCompleted,
			StudyID:     st.ID,
			TrialID:     trial.ID,
			TrialNumber: trial.Number,
			TrialStatus: string(trial.Status),
			Score:       trial.Score,
			Progress:    progress,
			Time:        ended,
		})
	}

	// Loop exit: settle the study status, clear the active marker and
	// persist one final time.
	now := time.Now().UTC()
	o.mu.Lock()
	cancelled := sc.cancelled
	if !cancelled && !failed {
		st.Status = study.StatusCompleted
		st.CompletedAt = &now
	}
	if sc.cancel != nil {
		sc.cancel()
		sc.cancel = nil
	}
	if o.activeID == st.ID {
		o.activeID = ""
	}
	progress := st.Progress()
	all := o.snapshotAllLocked()
	o.mu.Unlock()

	o.saveBestEffort(all)

	kind := EventStudyCompleted
	switch {
	case failed:
		kind = EventStudyFailed
	case cancelled:
		kind = EventStudyPaused
	}
	sc.events.publish(Event{Kind: kind, StudyID: st.ID, Progress: progress, Time: now})
	logger.Info("study loop exited", "study_id", st.ID, "status", st.Status, "trials", len(st.Trials))
}

// PauseStudy sets the cooperative cancellation flag and interrupts any
// suspended evaluation. The in-flight trial is not forcibly stopped by the
// flag alone; the evaluator observes the context cancellation.
func (o *Orchestrator) PauseStudy(id string) error {
	o.mu.Lock()
	sc, ok := o.studies[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	if sc.cancel == nil {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotRunning, id)
	}
	sc.cancelled = true
	sc.cancel()
	sc.study.Status = study.StatusPaused
	if o.activeID == id {
		o.activeID = ""
	}
	o.mu.Unlock()

	logger.Info("study paused", "study_id", id)
	return nil
}

// ResumeStudy restarts a paused study's loop. Trial numbering continues
// from the existing trial count; completed trials are never re-run.
func (o *Orchestrator) ResumeStudy(id string) error {
	o.mu.Lock()
	sc, ok := o.studies[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	if sc.study.Status != study.StatusPaused {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotPaused, id)
	}
	done := sc.done
	o.mu.Unlock()

	// Wait for the previous loop to finish winding down.
	if done != nil {
		<-done
	}
	return o.StartStudy(id)
}

// DeleteStudy pauses the study if needed, waits for its loop to exit, and
// removes it together with its surrogate cache and event stream.
func (o *Orchestrator) DeleteStudy(id string) error {
	o.mu.Lock()
	sc, ok := o.studies[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	if sc.cancel != nil {
		sc.cancelled = true
		sc.cancel()
		sc.study.Status = study.StatusPaused
		if o.activeID == id {
			o.activeID = ""
		}
	}
	done := sc.done
	o.mu.Unlock()

	if done != nil {
		<-done
	}

	o.mu.Lock()
	delete(o.studies, id)
	for i, sid := range o.order {
		if sid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	all := o.snapshotAllLocked()
	o.mu.Unlock()

	sc.events.closeAll()
	o.saveBestEffort(all)
	logger.Info("study deleted", "study_id", id)
	return nil
}

// PauseAll pauses every running study and waits for the loops to exit,
// used on daemon shutdown.
func (o *Orchestrator) PauseAll() {
	o.mu.Lock()
	var waits []chan struct{}
	for id, sc := range o.studies {
		if sc.cancel == nil {
			continue
		}
		sc.cancelled = true
		sc.cancel()
		sc.study.Status = study.StatusPaused
		if o.activeID == id {
			o.activeID = ""
		}
		waits = append(waits, sc.done)
	}
	o.mu.Unlock()

	for _, done := range waits {
		<-done
	}
}

// GetStudy returns a point-in-time copy of the study.
func (o *Orchestrator) GetStudy(id string) (*study.Study, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sc, ok := o.studies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	return snapshotStudy(sc.study), nil
}

// ListStudies returns copies of all studies in creation order.
func (o *Orchestrator) ListStudies() []*study.Study {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotAllLocked()
}

// GetProgress reports completed trials over the budget, in [0, 1].
func (o *Orchestrator) GetProgress(id string) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sc, ok := o.studies[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	return sc.study.Progress(), nil
}

// BestTrial returns a copy of the study's best trial, or nil when no trial
// has completed yet.
func (o *Orchestrator) BestTrial(id string) (*study.Trial, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sc, ok := o.studies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	best := sc.study.BestTrial()
	if best == nil {
		return nil, nil
	}
	return snapshotTrial(best), nil
}

// ActiveStudy returns the id of the most recently started study, or empty.
func (o *Orchestrator) ActiveStudy() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Subscribe attaches to the study's event stream. The returned cancel func
// must be called to detach.
func (o *Orchestrator) Subscribe(id string) (<-chan Event, func(), error) {
	o.mu.Lock()
	sc, ok := o.studies[id]
	o.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	ch, cancel := sc.events.subscribe()
	return ch, cancel, nil
}

func (o *Orchestrator) snapshotAllLocked() []*study.Study {
	out := make([]*study.Study, 0, len(o.order))
	for _, id := range o.order {
		if sc, ok := o.studies[id]; ok {
			out = append(out, snapshotStudy(sc.study))
		}
	}
	return out
}

// saveBestEffort persists the study list; failures are logged, not raised.
// The in-memory state stays authoritative for the running process.
func (o *Orchestrator) saveBestEffort(studies []*study.Study) {
	if err := o.store.Save(studies); err != nil {
		logger.Error("failed to persist studies", "error", err)
	}
}

func snapshotStudy(st *study.Study) *study.Study {
	cp := *st
	cp.Trials = make([]*study.Trial, len(st.Trials))
	for i, t := range st.Trials {
		cp.Trials[i] = snapshotTrial(t)
	}
	return &cp
}

func snapshotTrial(t *study.Trial) *study.Trial {
	cp := *t
	cp.Parameters = t.Parameters.Clone()
	if t.Metrics != nil {
		m := make(map[string]float64, len(t.Metrics))
		for k, v := range t.Metrics {
			m[k] = v
		}
		cp.Metrics = m
	}
	return &cp
}

package tuned

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tunelab/tuning-core/internal/study"
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/models"
)

func TestCreateStudyRejectsInvalidConfig(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	cfg := testStudyConfig(3)
	cfg.Name = ""
	if _, err := o.CreateStudy(cfg); err == nil {
		t.Fatal("expected error for empty study name")
	}
}

func TestCreateStudyPersists(t *testing.T) {
	o, store := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	st, err := o.CreateStudy(testStudyConfig(3))
	if err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	if st.Status != study.StatusCreated {
		t.Errorf("expected status created, got %s", st.Status)
	}
	if st.ID == "" {
		t.Error("expected a generated study ID")
	}
	saved := store.saved()
	if len(saved) != 1 || saved[0].ID != st.ID {
		t.Fatalf("expected the new study persisted, got %d studies", len(saved))
	}
}

func TestRunToCompletion(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	st, err := o.CreateStudy(testStudyConfig(3))
	if err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	events, cancel, err := o.Subscribe(st.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	waitFor(t, events, EventStudyCompleted)

	got, err := o.GetStudy(st.ID)
	if err != nil {
		t.Fatalf("GetStudy failed: %v", err)
	}
	if got.Status != study.StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if len(got.Trials) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(got.Trials))
	}
	var bestScore float64
	for i, tr := range got.Trials {
		if tr.Number != i {
			t.Errorf("trial %d has number %d", i, tr.Number)
		}
		if tr.Status != study.TrialCompleted {
			t.Errorf("trial %d not completed: %s", i, tr.Status)
		}
		if tr.Score == nil {
			t.Fatalf("trial %d has no score", i)
		}
		if *tr.Score > bestScore {
			bestScore = *tr.Score
		}
	}
	best, err := o.BestTrial(st.ID)
	if err != nil {
		t.Fatalf("BestTrial failed: %v", err)
	}
	if best == nil || best.Score == nil || *best.Score != bestScore {
		t.Errorf("best trial does not carry the highest score")
	}

	progress, err := o.GetProgress(st.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress != 1.0 {
		t.Errorf("expected progress 1.0, got %f", progress)
	}
}

func TestStartStudyTwice(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX, latency: 50 * time.Millisecond})

	st, _ := o.CreateStudy(testStudyConfig(2))
	events, cancel, _ := o.Subscribe(st.ID)
	defer cancel()

	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	if err := o.StartStudy(st.ID); !errors.Is(err, ErrStudyRunning) {
		t.Errorf("expected ErrStudyRunning, got %v", err)
	}
	waitFor(t, events, EventStudyCompleted)
}

func TestPauseResume(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX, latency: 20 * time.Millisecond})

	st, _ := o.CreateStudy(testStudyConfig(6))
	events, cancel, _ := o.Subscribe(st.ID)
	defer cancel()

	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	waitForTrials(t, events, 2)

	if err := o.PauseStudy(st.ID); err != nil {
		t.Fatalf("PauseStudy failed: %v", err)
	}
	waitFor(t, events, EventStudyPaused)

	got, _ := o.GetStudy(st.ID)
	if got.Status != study.StatusPaused {
		t.Fatalf("expected status paused, got %s", got.Status)
	}
	paused := len(got.Trials)
	if paused < 2 || paused >= 6 {
		t.Fatalf("expected a partial trial list after pause, got %d", paused)
	}
	// An interrupted evaluation must be rolled back, not recorded.
	for _, tr := range got.Trials {
		if !tr.Status.Terminal() {
			t.Errorf("trial %d left non-terminal after pause: %s", tr.Number, tr.Status)
		}
	}

	if err := o.ResumeStudy(st.ID); err != nil {
		t.Fatalf("ResumeStudy failed: %v", err)
	}
	waitFor(t, events, EventStudyCompleted)

	got, _ = o.GetStudy(st.ID)
	if got.Status != study.StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if len(got.Trials) != 6 {
		t.Fatalf("expected 6 trials after resume, got %d", len(got.Trials))
	}
	for i, tr := range got.Trials {
		if tr.Number != i {
			t.Errorf("trial numbering broke across resume: index %d has number %d", i, tr.Number)
		}
	}
}

func TestFailedTrialsDoNotAbortStudy(t *testing.T) {
	ev := &stubEvaluator{score: func(call int, params models.Assignment) (float64, error) {
		if call%2 == 1 {
			return 0, fmt.Errorf("transient failure")
		}
		return scoreByX(call, params)
	}}

	o, _ := newTestOrchestrator(ev)
	st, _ := o.CreateStudy(testStudyConfig(4))
	events, cancel, _ := o.Subscribe(st.ID)
	defer cancel()

	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	waitFor(t, events, EventStudyCompleted)

	got, _ := o.GetStudy(st.ID)
	if got.Status != study.StatusCompleted {
		t.Fatalf("expected status completed, got %s", got.Status)
	}
	completed, failed := 0, 0
	for _, tr := range got.Trials {
		switch tr.Status {
		case study.TrialCompleted:
			completed++
		case study.TrialFailed:
			failed++
		}
	}
	if completed != 2 || failed != 2 {
		t.Errorf("expected 2 completed and 2 failed trials, got %d/%d", completed, failed)
	}
	best, _ := o.BestTrial(st.ID)
	if best == nil || best.Status != study.TrialCompleted {
		t.Error("best trial should come from the completed trials")
	}
}

func TestDeleteStudy(t *testing.T) {
	o, store := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	st, _ := o.CreateStudy(testStudyConfig(3))
	if err := o.DeleteStudy(st.ID); err != nil {
		t.Fatalf("DeleteStudy failed: %v", err)
	}
	if _, err := o.GetStudy(st.ID); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("expected ErrStudyNotFound after delete, got %v", err)
	}
	if len(store.saved()) != 0 {
		t.Errorf("expected the deletion persisted, %d studies remain", len(store.saved()))
	}
}

func TestDeleteRunningStudy(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX, latency: 20 * time.Millisecond})

	st, _ := o.CreateStudy(testStudyConfig(50))
	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	if err := o.DeleteStudy(st.ID); err != nil {
		t.Fatalf("DeleteStudy failed on a running study: %v", err)
	}
	if _, err := o.GetStudy(st.ID); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("expected ErrStudyNotFound after delete, got %v", err)
	}
}

func TestLifecycleErrors(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	if err := o.StartStudy("missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("StartStudy: expected ErrStudyNotFound, got %v", err)
	}
	if err := o.PauseStudy("missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("PauseStudy: expected ErrStudyNotFound, got %v", err)
	}
	if err := o.DeleteStudy("missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Errorf("DeleteStudy: expected ErrStudyNotFound, got %v", err)
	}

	st, _ := o.CreateStudy(testStudyConfig(3))
	if err := o.PauseStudy(st.ID); !errors.Is(err, ErrStudyNotRunning) {
		t.Errorf("expected ErrStudyNotRunning for a created study, got %v", err)
	}
	if err := o.ResumeStudy(st.ID); !errors.Is(err, ErrStudyNotPaused) {
		t.Errorf("expected ErrStudyNotPaused for a created study, got %v", err)
	}
}

func TestLoadDemotesRunningStudies(t *testing.T) {
	store := &memStore{}
	cfg := testStudyConfig(3)
	persisted := study.New("persisted-1", cfg, time.Now().UTC())
	persisted.Status = study.StatusRunning
	store.studies = []*study.Study{persisted}

	o := NewOrchestrator(store, &stubEvaluator{score: scoreByX}, nil).WithSeed(42)
	if err := o.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, err := o.GetStudy("persisted-1")
	if err != nil {
		t.Fatalf("GetStudy failed: %v", err)
	}
	if got.Status != study.StatusPaused {
		t.Errorf("expected a running study demoted to paused on load, got %s", got.Status)
	}
}

func TestListStudiesCreationOrder(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	var ids []string
	for i := 0; i < 3; i++ {
		cfg := testStudyConfig(3)
		cfg.Name = fmt.Sprintf("study-%d", i)
		st, err := o.CreateStudy(cfg)
		if err != nil {
			t.Fatalf("CreateStudy failed: %v", err)
		}
		ids = append(ids, st.ID)
	}
	listed := o.ListStudies()
	if len(listed) != 3 {
		t.Fatalf("expected 3 studies, got %d", len(listed))
	}
	for i, st := range listed {
		if st.ID != ids[i] {
			t.Errorf("listing order mismatch at %d", i)
		}
	}
}

func TestGetStudyReturnsSnapshot(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	st, _ := o.CreateStudy(testStudyConfig(3))
	snap, _ := o.GetStudy(st.ID)
	snap.Status = study.StatusFailed

	again, _ := o.GetStudy(st.ID)
	if again.Status != study.StatusCreated {
		t.Error("mutating a snapshot must not affect orchestrator state")
	}
}

func TestBayesianStudyCompletes(t *testing.T) {
	o, _ := newTestOrchestrator(&stubEvaluator{score: scoreByX})

	cfg := testStudyConfig(8)
	cfg.Strategy = config.StrategyBayesian
	st, err := o.CreateStudy(cfg)
	if err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	events, cancel, _ := o.Subscribe(st.ID)
	defer cancel()

	if err := o.StartStudy(st.ID); err != nil {
		t.Fatalf("StartStudy failed: %v", err)
	}
	waitFor(t, events, EventStudyCompleted)

	got, _ := o.GetStudy(st.ID)
	if len(got.Trials) != 8 {
		t.Fatalf("expected 8 trials, got %d", len(got.Trials))
	}
	for _, tr := range got.Trials {
		if tr.Status != study.TrialCompleted {
			t.Errorf("trial %d not completed: %s", tr.Number, tr.Status)
		}
	}
}

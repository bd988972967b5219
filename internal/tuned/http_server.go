package tuned

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/logger"
)

// HTTPServer exposes the orchestrator over a JSON API plus one SSE stream
// per study.
type HTTPServer struct {
	mux          *http.ServeMux
	orchestrator *Orchestrator
}

func NewHTTPServer(orchestrator *Orchestrator, gatherer prometheus.Gatherer) *HTTPServer {
	s := &HTTPServer{
		mux:          http.NewServeMux(),
		orchestrator: orchestrator,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/studies", s.handleStudies)
	s.mux.HandleFunc("/v1/studies/", s.handleStudyByID)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// handleStudies handles /v1/studies
func (s *HTTPServer) handleStudies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateStudy(w, r)
	case http.MethodGet:
		s.handleListStudies(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStudyByID handles /v1/studies/{id} and related endpoints
func (s *HTTPServer) handleStudyByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/studies/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "study ID is required")
		return
	}

	for _, action := range []string{":start", ":pause", ":resume"} {
		if strings.HasSuffix(path, action) {
			id := strings.TrimSuffix(path, action)
			if r.Method != http.MethodPost {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			s.handleStudyAction(w, r, id, action)
			return
		}
	}

	if strings.HasSuffix(path, "/progress") {
		id := strings.TrimSuffix(path, "/progress")
		if r.Method == http.MethodGet {
			s.handleProgress(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/best") {
		id := strings.TrimSuffix(path, "/best")
		if r.Method == http.MethodGet {
			s.handleBestTrial(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/events") {
		id := strings.TrimSuffix(path, "/events")
		if r.Method == http.MethodGet {
			s.handleEventStream(w, r, id)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetStudy(w, r, path)
	case http.MethodDelete:
		s.handleDeleteStudy(w, r, path)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateStudy handles POST /v1/studies
func (s *HTTPServer) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var cfg config.StudyConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	st, err := s.orchestrator.CreateStudy(cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, st)
}

// handleListStudies handles GET /v1/studies
func (s *HTTPServer) handleListStudies(w http.ResponseWriter, _ *http.Request) {
	studies := s.orchestrator.ListStudies()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"studies":         studies,
		"active_study_id": s.orchestrator.ActiveStudy(),
	})
}

// handleGetStudy handles GET /v1/studies/{id}
func (s *HTTPServer) handleGetStudy(w http.ResponseWriter, _ *http.Request, id string) {
	st, err := s.orchestrator.GetStudy(id)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// handleDeleteStudy handles DELETE /v1/studies/{id}
func (s *HTTPServer) handleDeleteStudy(w http.ResponseWriter, _ *http.Request, id string) {
	if err := s.orchestrator.DeleteStudy(id); err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleStudyAction handles POST /v1/studies/{id}:start|:pause|:resume
func (s *HTTPServer) handleStudyAction(w http.ResponseWriter, _ *http.Request, id, action string) {
	var err error
	switch action {
	case ":start":
		err = s.orchestrator.StartStudy(id)
	case ":pause":
		err = s.orchestrator.PauseStudy(id)
	case ":resume":
		err = s.orchestrator.ResumeStudy(id)
	}
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	st, err := s.orchestrator.GetStudy(id)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":     st.ID,
		"status": st.Status,
	})
}

// handleProgress handles GET /v1/studies/{id}/progress
func (s *HTTPServer) handleProgress(w http.ResponseWriter, _ *http.Request, id string) {
	progress, err := s.orchestrator.GetProgress(id)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"progress": progress,
	})
}

// handleBestTrial handles GET /v1/studies/{id}/best
func (s *HTTPServer) handleBestTrial(w http.ResponseWriter, _ *http.Request, id string) {
	best, err := s.orchestrator.BestTrial(id)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	if best == nil {
		s.writeError(w, http.StatusNotFound, "no completed trials yet")
		return
	}
	s.writeJSON(w, http.StatusOK, best)
}

// handleEventStream handles GET /v1/studies/{id}/events (SSE)
func (s *HTTPServer) handleEventStream(w http.ResponseWriter, r *http.Request, id string) {
	events, cancel, err := s.orchestrator.Subscribe(id)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return
		case e, ok := <-events:
			if !ok {
				// Study deleted, stream over
				return
			}
			s.sendSSEEvent(w, string(e.Kind), e)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSEEvent writes one event in SSE wire format. Errors are logged but
// not returned as SSE streams are best-effort.
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event data", "error", err)
		return
	}
	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		logger.Error("failed to write SSE event", "error", err)
		return
	}
	if _, err := w.Write([]byte("data: " + string(jsonData) + "\n\n")); err != nil {
		logger.Error("failed to write SSE data", "error", err)
	}
}

func (s *HTTPServer) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStudyNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrStudyRunning), errors.Is(err, ErrStudyNotRunning), errors.Is(err, ErrStudyNotPaused):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

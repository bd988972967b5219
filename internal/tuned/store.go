// Package tuned owns the orchestration side of the tuning engine: the
// per-study control loops, the evaluator and persistence boundaries, the
// event streams and the HTTP API.
package tuned

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tunelab/tuning-core/internal/study"
	"github.com/tunelab/tuning-core/pkg/logger"
	"github.com/tunelab/tuning-core/pkg/utils"
)

// Store is the durable save/load boundary for the full study list. Saves
// replace the previous state wholesale; there is no partial format.
type Store interface {
	Save(studies []*study.Study) error
	Load() ([]*study.Study, error)
}

// storeFile is the persisted envelope.
type storeFile struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Studies []*study.Study `json:"studies"`
}

const storeVersion = 1

// FileStore persists the study list as one JSON document, replaced
// atomically via a temp file and rename on every save. Transient write
// errors are retried with backoff.
type FileStore struct {
	path       string
	backoff    utils.BackoffStrategy
	maxRetries int
}

// NewFileStore creates the data directory if needed and returns a store
// writing to studies.json inside it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileStore{
		path:       filepath.Join(dir, "studies.json"),
		backoff:    utils.NewExponentialBackoff(50*time.Millisecond, time.Second, 2.0),
		maxRetries: 3,
	}, nil
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

// Save writes the whole study list, replacing the previous file atomically.
func (fs *FileStore) Save(studies []*study.Study) error {
	data, err := json.MarshalIndent(storeFile{
		Version: storeVersion,
		SavedAt: time.Now().UTC(),
		Studies: studies,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal studies: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= fs.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(fs.backoff.NextDelay(attempt - 1))
		}
		if lastErr = fs.writeAtomic(data); lastErr == nil {
			return nil
		}
		logger.Warn("study save attempt failed",
			"path", fs.path, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("failed to save studies after %d attempts: %w", fs.maxRetries+1, lastErr)
}

func (fs *FileStore) writeAtomic(data []byte) error {
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

// Load reads the full study list back. A missing file is an empty list, not
// an error.
func (fs *FileStore) Load() ([]*study.Study, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fs.path, err)
	}
	return file.Studies, nil
}

// Package state provides persistent run history for forge pipelines
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/types"
)

// ErrPipelineLocked indicates another process is running the same pipeline
// in this project.
var ErrPipelineLocked = errors.New("pipeline is already running")

// RunRecord is the persisted outcome of the latest run of a pipeline.
type RunRecord struct {
	Pipeline     string          `json:"pipeline"`
	RunID        string          `json:"runId"`
	Status       types.RunStatus `json:"status"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt,omitempty"`
	Duration     time.Duration   `json:"duration,omitempty"`
	ProcessID    int             `json:"processId"`
	RunCount     int             `json:"runCount"`
	FailureCount int             `json:"failureCount"`
	LastError    string          `json:"lastError,omitempty"`
	FailedTasks  []string        `json:"failedTasks,omitempty"`
}

// StateManager handles the run record files under .forge/state.
type StateManager struct {
	stateDir string
	logger   logger.Logger
	mu       sync.RWMutex
	states   map[string]*RunRecord
}

// NewStateManager creates a state manager for the project in projectRoot.
func NewStateManager(projectRoot string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.NewNop()
	}
	return &StateManager{
		stateDir: filepath.Join(projectRoot, ".forge", "state"),
		logger:   log,
		states:   make(map[string]*RunRecord),
	}
}

// Dir returns the directory holding the run records.
func (sm *StateManager) Dir() string {
	return sm.stateDir
}

// Lock takes the per-pipeline run lock. The returned function releases it.
func (sm *StateManager) Lock(pipeline string) (func() error, error) {
	if err := os.MkdirAll(sm.stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(sm.lockFilePath(pipeline))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock pipeline %s: %w", pipeline, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrPipelineLocked, pipeline)
	}
	return lock.Unlock, nil
}

// IsLocked reports whether another holder has the pipeline's run lock.
func (sm *StateManager) IsLocked(pipeline string) (bool, error) {
	if _, err := os.Stat(sm.lockFilePath(pipeline)); os.IsNotExist(err) {
		return false, nil
	}
	lock := flock.New(sm.lockFilePath(pipeline))
	locked, err := lock.TryRLock()
	if err != nil {
		return false, err
	}
	if locked {
		_ = lock.Unlock()
	}
	return !locked, nil
}

// BeginRun records that a run of pipeline has started.
func (sm *StateManager) BeginRun(pipeline, runID string, startedAt time.Time) (*RunRecord, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	record := &RunRecord{
		Pipeline:  pipeline,
		RunID:     runID,
		Status:    types.RunStatusRunning,
		StartedAt: startedAt,
		ProcessID: os.Getpid(),
	}

	// Counters survive across runs.
	if existing, err := sm.loadStateFile(pipeline); err == nil {
		record.RunCount = existing.RunCount
		record.FailureCount = existing.FailureCount
	}

	if err := sm.saveStateFile(record); err != nil {
		return nil, fmt.Errorf("failed to save run state: %w", err)
	}
	sm.states[pipeline] = record
	return record, nil
}

// FinishRun records the outcome of the current run of pipeline.
func (sm *StateManager) FinishRun(pipeline string, finishedAt time.Time, duration time.Duration, runErr error, failedTasks []string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	record, ok := sm.states[pipeline]
	if !ok {
		loaded, err := sm.loadStateFile(pipeline)
		if err != nil {
			return fmt.Errorf("pipeline state not found: %s", pipeline)
		}
		record = loaded
		sm.states[pipeline] = record
	}

	record.FinishedAt = finishedAt
	record.Duration = duration
	record.RunCount++
	record.FailedTasks = failedTasks
	if runErr != nil {
		record.Status = types.RunStatusFailed
		record.FailureCount++
		record.LastError = runErr.Error()
	} else {
		record.Status = types.RunStatusSucceeded
		record.LastError = ""
	}
	return sm.saveStateFile(record)
}

// ReadState reads the latest run record of a pipeline.
func (sm *StateManager) ReadState(pipeline string) (*RunRecord, error) {
	sm.mu.RLock()
	if record, ok := sm.states[pipeline]; ok {
		sm.mu.RUnlock()
		return record, nil
	}
	sm.mu.RUnlock()

	return sm.loadStateFile(pipeline)
}

// RemoveState removes the run record of a pipeline.
func (sm *StateManager) RemoveState(pipeline string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, pipeline)
	if err := os.Remove(sm.getStateFilePath(pipeline)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// DiscoverStates returns every run record on disk, ordered by pipeline name.
func (sm *StateManager) DiscoverStates() ([]*RunRecord, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var records []*RunRecord
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		pipeline := strings.TrimSuffix(file.Name(), ".json")
		record, err := sm.loadStateFile(pipeline)
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("pipeline", pipeline),
				logger.WithField("error", err))
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Pipeline < records[j].Pipeline })
	return records, nil
}

// Recorder returns an engine observer that persists the run of pipeline.
func (sm *StateManager) Recorder(pipeline string) *Recorder {
	return &Recorder{manager: sm, pipeline: pipeline}
}

// Recorder persists run records from engine events. The runner serialises
// events, so Recorder keeps no lock of its own.
type Recorder struct {
	manager  *StateManager
	pipeline string
	failed   []string
}

var _ engine.Observer = (*Recorder)(nil)

// OnEvent implements engine.Observer.
func (r *Recorder) OnEvent(e engine.Event) {
	root := len(e.Path) == 1
	switch {
	case e.Type == engine.EventStarted && root:
		r.failed = nil
		if _, err := r.manager.BeginRun(r.pipeline, e.RunID, e.Time); err != nil {
			r.manager.logger.Warn("Failed to record run start", logger.WithField("error", err))
		}
	case e.Type == engine.EventFinished && e.Kind == engine.KindTask && e.Err != nil:
		r.failed = append(r.failed, e.Task)
		if root {
			r.finish(e)
		}
	case e.Type == engine.EventFinished && root:
		r.finish(e)
	}
}

func (r *Recorder) finish(e engine.Event) {
	if err := r.manager.FinishRun(r.pipeline, e.Time, e.Duration, e.Err, r.failed); err != nil {
		r.manager.logger.Warn("Failed to record run result", logger.WithField("error", err))
	}
}

func (sm *StateManager) getStateFilePath(pipeline string) string {
	return filepath.Join(sm.stateDir, pipeline+".json")
}

func (sm *StateManager) lockFilePath(pipeline string) string {
	return filepath.Join(sm.stateDir, pipeline+".lock")
}

func (sm *StateManager) loadStateFile(pipeline string) (*RunRecord, error) {
	data, err := os.ReadFile(sm.getStateFilePath(pipeline))
	if err != nil {
		return nil, err
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &record, nil
}

func (sm *StateManager) saveStateFile(record *RunRecord) error {
	if err := os.MkdirAll(sm.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	stateFile := sm.getStateFilePath(record.Pipeline)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

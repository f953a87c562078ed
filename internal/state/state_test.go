package state_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/types"
)

func TestStateManager_BeginAndFinishRun(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)
	started := time.Now()

	record, err := sm.BeginRun("build", "run-1", started)
	if err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}
	if record.Status != types.RunStatusRunning {
		t.Errorf("expected running status, got %s", record.Status)
	}
	if record.ProcessID != os.Getpid() {
		t.Errorf("expected current PID, got %d", record.ProcessID)
	}

	stateFile := filepath.Join(tmpDir, ".forge", "state", "build.json")
	if _, err := os.Stat(stateFile); os.IsNotExist(err) {
		t.Fatal("state file was not created")
	}

	if err := sm.FinishRun("build", started.Add(time.Second), time.Second, errors.New("compile failed"), []string{"compile"}); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	// A fresh manager reads what was persisted.
	loaded, err := state.NewStateManager(tmpDir, nil).ReadState("build")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if loaded.Status != types.RunStatusFailed {
		t.Errorf("expected failed status, got %s", loaded.Status)
	}
	if loaded.RunCount != 1 || loaded.FailureCount != 1 {
		t.Errorf("unexpected counters: runs=%d failures=%d", loaded.RunCount, loaded.FailureCount)
	}
	if loaded.LastError != "compile failed" {
		t.Errorf("unexpected last error: %q", loaded.LastError)
	}
	if len(loaded.FailedTasks) != 1 || loaded.FailedTasks[0] != "compile" {
		t.Errorf("unexpected failed tasks: %v", loaded.FailedTasks)
	}
	if loaded.Duration != time.Second {
		t.Errorf("expected duration 1s, got %s", loaded.Duration)
	}
}

func TestStateManager_CountersSurviveRuns(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	for i, runErr := range []error{nil, errors.New("boom"), nil} {
		if _, err := sm.BeginRun("test", "run", time.Now()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if err := sm.FinishRun("test", time.Now(), time.Millisecond, runErr, nil); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	record, err := state.NewStateManager(tmpDir, nil).ReadState("test")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if record.RunCount != 3 || record.FailureCount != 1 {
		t.Errorf("unexpected counters: runs=%d failures=%d", record.RunCount, record.FailureCount)
	}
	if record.Status != types.RunStatusSucceeded || record.LastError != "" {
		t.Errorf("expected last run to succeed, got %s %q", record.Status, record.LastError)
	}
}

func TestStateManager_FinishWithoutBegin(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)
	if err := sm.FinishRun("lint", time.Now(), 0, nil, nil); err == nil {
		t.Fatal("expected error finishing a run that never began")
	}
}

func TestStateManager_DiscoverAndRemove(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	records, err := sm.DiscoverStates()
	if err != nil || len(records) != 0 {
		t.Fatalf("expected no records before any run, got %v, %v", records, err)
	}

	for _, name := range []string{"lint", "build", "all"} {
		if _, err := sm.BeginRun(name, "run", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	// Corrupt files are skipped, not fatal.
	if err := os.WriteFile(filepath.Join(sm.Dir(), "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err = sm.DiscoverStates()
	if err != nil {
		t.Fatalf("failed to discover states: %v", err)
	}
	var names []string
	for _, record := range records {
		names = append(names, record.Pipeline)
	}
	if len(names) != 3 || names[0] != "all" || names[1] != "build" || names[2] != "lint" {
		t.Errorf("expected sorted pipelines [all build lint], got %v", names)
	}

	if err := sm.RemoveState("build"); err != nil {
		t.Fatalf("failed to remove state: %v", err)
	}
	if err := sm.RemoveState("build"); err != nil {
		t.Errorf("removing twice should succeed: %v", err)
	}
	if _, err := sm.ReadState("build"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestStateManager_Lock(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)

	locked, err := sm.IsLocked("all")
	if err != nil || locked {
		t.Fatalf("expected unlocked pipeline, got %v, %v", locked, err)
	}

	unlock, err := sm.Lock("all")
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}

	if _, err := sm.Lock("all"); !errors.Is(err, state.ErrPipelineLocked) {
		t.Errorf("expected ErrPipelineLocked, got %v", err)
	}
	if locked, _ := sm.IsLocked("all"); !locked {
		t.Error("expected pipeline to be reported locked")
	}
	if _, err := sm.Lock("build"); err != nil {
		t.Errorf("other pipelines must not be blocked: %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("failed to unlock: %v", err)
	}
	relock, err := sm.Lock("all")
	if err != nil {
		t.Fatalf("expected lock to be free after unlock: %v", err)
	}
	_ = relock()
}

func TestRecorder_PersistsRunFromEngineEvents(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	boom := errors.New("lint crashed")
	graph := engine.Series("all",
		engine.Task("clean", func(ctx context.Context) error { return nil }),
		engine.Task("lint", func(ctx context.Context) error { return boom }),
		engine.Task("compile", func(ctx context.Context) error { return nil }),
	)

	runner := engine.NewRunner(logger.NewNop(), sm.Recorder("all"))
	if err := runner.Run(context.Background(), graph); !errors.Is(err, boom) {
		t.Fatalf("expected lint failure, got %v", err)
	}

	record, err := sm.ReadState("all")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if record.Status != types.RunStatusFailed {
		t.Errorf("expected failed status, got %s", record.Status)
	}
	if record.RunID == "" {
		t.Error("expected run ID to be recorded")
	}
	if len(record.FailedTasks) != 1 || record.FailedTasks[0] != "lint" {
		t.Errorf("expected failed task lint, got %v", record.FailedTasks)
	}

	// A second, successful run through the same recorder starts clean.
	ok := engine.Task("all", func(ctx context.Context) error { return nil })
	if err := runner.Run(context.Background(), ok); err != nil {
		t.Fatal(err)
	}
	record, _ = sm.ReadState("all")
	if record.Status != types.RunStatusSucceeded || len(record.FailedTasks) != 0 || record.RunCount != 2 {
		t.Errorf("unexpected record after success: %+v", record)
	}
}

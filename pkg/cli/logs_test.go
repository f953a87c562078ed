package cli_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colonise/forge/internal/state"
)

func setupTestLogs(t *testing.T, root string, logs map[string]int) {
	t.Helper()
	for name, lines := range logs {
		var b strings.Builder
		for i := 1; i <= lines; i++ {
			fmt.Fprintf(&b, "%s line %d\n", name, i)
		}
		writeFile(t, filepath.Join(root, ".forge", "logs", name+".log"), b.String())
	}
}

func TestLogsCommand_All(t *testing.T) {
	root := t.TempDir()
	setupTestLogs(t, root, map[string]int{"compile": 3, "lint": 2})

	tc := newTestCLI(t, root, nil)
	if err := tc.cli.Execute([]string{"logs"}); err != nil {
		t.Fatalf("logs failed: %v", err)
	}

	output := tc.out.String()
	compile := strings.Index(output, "=== compile ===")
	lint := strings.Index(output, "=== lint ===")
	if compile < 0 || lint < 0 || compile > lint {
		t.Errorf("expected sorted sections for every log, got:\n%s", output)
	}
	if !strings.Contains(output, "lint line 2") {
		t.Errorf("expected log content, got:\n%s", output)
	}
}

func TestLogsCommand_LimitLines(t *testing.T) {
	root := t.TempDir()
	setupTestLogs(t, root, map[string]int{"test": 100})

	tc := newTestCLI(t, root, nil)
	if err := tc.cli.Execute([]string{"logs", "test", "-n", "2"}); err != nil {
		t.Fatalf("logs failed: %v", err)
	}

	output := tc.out.String()
	if !strings.Contains(output, "test line 99\ntest line 100\n") {
		t.Errorf("expected the last two lines, got:\n%s", output)
	}
	if strings.Contains(output, "test line 98\n") {
		t.Errorf("expected older lines to be cut, got:\n%s", output)
	}
}

func TestLogsCommand_Missing(t *testing.T) {
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)

	if err := tc.cli.Execute([]string{"logs"}); err != nil {
		t.Errorf("expected no error without a log directory, got %v", err)
	}
	if !strings.Contains(tc.out.String(), "No logs found") {
		t.Errorf("expected a hint, got %q", tc.out.String())
	}

	setupTestLogs(t, root, map[string]int{"compile": 1})
	if err := tc.cli.Execute([]string{"logs", "release"}); err == nil {
		t.Error("expected an unknown log to fail")
	}
}

func TestWaitCommand(t *testing.T) {
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)

	if err := tc.cli.Execute([]string{"wait", "clean"}); err == nil {
		t.Error("expected wait to fail for a pipeline that never ran")
	}

	if err := tc.cli.Execute([]string{"clean"}); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if err := tc.cli.Execute([]string{"wait", "clean"}); err != nil {
		t.Errorf("expected wait to report the successful run, got %v", err)
	}
}

func TestWaitCommand_Timeout(t *testing.T) {
	root := t.TempDir()
	unlock, err := state.NewStateManager(root, nil).Lock("build")
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}
	defer unlock()

	tc := newTestCLI(t, root, nil)
	start := time.Now()
	err = tc.cli.Execute([]string{"wait", "build", "--timeout", "100ms", "--poll-interval", "10ms"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected a timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wait ignored its timeout")
	}
}

func TestWaitCommand_ReleasedLock(t *testing.T) {
	root := t.TempDir()
	sm := state.NewStateManager(root, nil)
	unlock, err := sm.Lock("build")
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}
	if _, err := sm.BeginRun("build", "run-1", time.Now()); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		sm.FinishRun("build", time.Now(), time.Second, fmt.Errorf("compile failed"), []string{"compile"})
		unlock()
	}()

	tc := newTestCLI(t, root, nil)
	err = tc.cli.Execute([]string{"wait", "build", "--poll-interval", "10ms"})
	if err == nil || !strings.Contains(err.Error(), "compile failed") {
		t.Errorf("expected the recorded failure, got %v", err)
	}
}

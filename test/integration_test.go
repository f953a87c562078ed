//go:build integration

package integration_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/cli"
	"github.com/colonise/forge/pkg/config"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/types"
)

func requireGo(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go is not on PATH")
	}
}

// newGoProject lays out a one-binary module with a forge config that leaves
// release out of distribute.
func newGoProject(t *testing.T, mainSource string) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"go.mod":  "module example.com/hello\n\ngo 1.21\n",
		"main.go": mainSource,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	cfg, err := config.Preset(types.ProjectTypeGo)
	if err != nil {
		t.Fatalf("failed to load go preset: %v", err)
	}
	disabled := false
	cfg.Release.Enabled = &disabled
	if err := config.NewManager().WriteConfig(filepath.Join(root, "forge.config.yaml"), cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return root
}

func forge(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cfg := cli.NewConfig()
	cfg.ProjectRoot = root
	out := &bytes.Buffer{}
	err := cli.NewCLIWithOutput(cfg, out, out).Execute(args)
	return out.String(), err
}

const helloSource = `package main

import "fmt"

func main() { fmt.Println("hello from forge") }
`

func TestBuildAndDistribute(t *testing.T) {
	requireGo(t)
	root := newGoProject(t, helloSource)

	if out, err := forge(t, root, "build"); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	binary := filepath.Join(root, "bin", "hello")
	if _, err := os.Stat(binary); err != nil {
		t.Fatalf("expected %s after build: %v", binary, err)
	}

	if out, err := forge(t, root, "distribute"); err != nil {
		t.Fatalf("distribute failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "hello")); err != nil {
		t.Errorf("expected the binary in dist: %v", err)
	}

	built, err := exec.Command(binary).Output()
	if err != nil {
		t.Fatalf("failed to run built binary: %v", err)
	}
	if strings.TrimSpace(string(built)) != "hello from forge" {
		t.Errorf("unexpected binary output %q", built)
	}
}

func TestCleanRemovesOutputs(t *testing.T) {
	requireGo(t)
	root := newGoProject(t, helloSource)

	if out, err := forge(t, root, "distribute"); err != nil {
		t.Fatalf("distribute failed: %v\n%s", err, out)
	}
	if out, err := forge(t, root, "clean"); err != nil {
		t.Fatalf("clean failed: %v\n%s", err, out)
	}

	for _, dir := range []string{"bin", "dist"} {
		if _, err := os.Stat(filepath.Join(root, dir)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat returned %v", dir, err)
		}
	}
}

func TestCompileFailureIsRecorded(t *testing.T) {
	requireGo(t)
	root := newGoProject(t, "package main\n\nfunc main() { undefinedCall() }\n")

	out, err := forge(t, root, "build")
	if err == nil {
		t.Fatalf("expected build to fail\n%s", out)
	}

	sm := state.NewStateManager(root, logger.NewNop())
	record, err := sm.ReadState("build")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if record == nil || record.Status != types.RunStatusFailed {
		t.Fatalf("expected a failed build record, got %+v", record)
	}
	if len(record.FailedTasks) != 1 || record.FailedTasks[0] != "compile" {
		t.Errorf("expected compile to be the failed task, got %v", record.FailedTasks)
	}

	logs, err := forge(t, root, "logs", "compile")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(logs, "undefinedCall") {
		t.Errorf("expected the compiler error in the compile log, got:\n%s", logs)
	}
}

func TestWaitAfterRun(t *testing.T) {
	requireGo(t)
	root := newGoProject(t, helloSource)

	if out, err := forge(t, root, "build"); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	if out, err := forge(t, root, "wait", "build", "--timeout", "5s"); err != nil {
		t.Errorf("wait failed: %v\n%s", err, out)
	}

	out, err := forge(t, root, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "build") || !strings.Contains(out, "succeeded") {
		t.Errorf("expected a succeeded build in status, got:\n%s", out)
	}
}

package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/cli"
	"github.com/colonise/forge/pkg/mocks"
	"github.com/colonise/forge/pkg/release"
	"github.com/colonise/forge/pkg/types"
)

type testCLI struct {
	cli    *cli.CLI
	runner *mocks.MockRunner
	out    *bytes.Buffer
	root   string
}

func newTestCLI(t *testing.T, root string, configure func(*cli.Config)) *testCLI {
	t.Helper()
	runner := mocks.NewMockRunner()
	cfg := cli.NewConfig()
	cfg.ProjectRoot = root
	cfg.Version = "1.2.3"
	cfg.Runner = runner
	if configure != nil {
		configure(cfg)
	}
	out := &bytes.Buffer{}
	return &testCLI{
		cli:    cli.NewCLIWithOutput(cfg, out, out),
		runner: runner,
		out:    out,
		root:   root,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func hasLinePrefix(lines []string, prefix string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func TestVersionCommand(t *testing.T) {
	tc := newTestCLI(t, t.TempDir(), nil)

	if err := tc.cli.Execute([]string{"version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(tc.out.String(), "forge v1.2.3") {
		t.Errorf("expected version output, got %q", tc.out.String())
	}
}

func TestBuildCommand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "source", "index.d.ts"), "export {};\n")
	writeFile(t, filepath.Join(root, "build", "stale.js"), "old")

	tc := newTestCLI(t, root, nil)
	if err := tc.cli.Execute([]string{"build"}); err != nil {
		t.Fatalf("build failed: %v\n%s", err, tc.out.String())
	}

	if !hasLinePrefix(tc.runner.Lines(), "npx tsc") {
		t.Errorf("expected the compiler to run, got %v", tc.runner.Lines())
	}
	if _, err := os.Stat(filepath.Join(root, "build", "stale.js")); !os.IsNotExist(err) {
		t.Error("expected clean to remove the previous build")
	}
	if _, err := os.Stat(filepath.Join(root, "build", "index.d.ts")); err != nil {
		t.Errorf("expected declarations to be copied: %v", err)
	}

	record, err := state.NewStateManager(root, nil).ReadState("build")
	if err != nil {
		t.Fatalf("expected a run record: %v", err)
	}
	if record.Status != types.RunStatusSucceeded || record.RunCount != 1 {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestBuildCommand_CompilerFailure(t *testing.T) {
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)
	tc.runner.On("npx tsc", mocks.Response{ExitCode: 2, Stderr: "error TS2304"})

	err := tc.cli.Execute([]string{"build"})
	if err == nil {
		t.Fatal("expected build to fail")
	}
	if !strings.Contains(err.Error(), "'build' failed") {
		t.Errorf("unexpected error: %v", err)
	}

	record, err := state.NewStateManager(root, nil).ReadState("build")
	if err != nil {
		t.Fatalf("expected a run record: %v", err)
	}
	if record.Status != types.RunStatusFailed {
		t.Errorf("expected failed status, got %s", record.Status)
	}
	if len(record.FailedTasks) != 1 || record.FailedTasks[0] != "compile" {
		t.Errorf("expected compile to be the failed task, got %v", record.FailedTasks)
	}
}

func TestDistributeCommand_RequiresPackageName(t *testing.T) {
	t.Setenv(release.DefaultPackageNameEnv, "")
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)

	err := tc.cli.Execute([]string{"distribute"})
	if err == nil {
		t.Fatal("expected distribute to fail without a package name")
	}
	var cfgErr *release.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Code != release.CodeNoPackageName {
		t.Fatalf("expected %s, got %v", release.CodeNoPackageName, err)
	}
	if lines := tc.runner.Lines(); len(lines) != 0 {
		t.Errorf("expected no command to run, got %v", lines)
	}
	if !strings.Contains(tc.out.String(), release.DefaultPackageNameEnv) {
		t.Errorf("expected the remediation hint in the output, got %q", tc.out.String())
	}
}

func TestDistributeCommand_ReleaseDisabled(t *testing.T) {
	t.Setenv(release.DefaultPackageNameEnv, "")
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "forge.config.yaml"), "version: \"1.0\"\nrelease:\n  enabled: false\n")

	tc := newTestCLI(t, root, nil)

	if err := tc.cli.Execute([]string{"distribute"}); err != nil {
		t.Fatalf("distribute failed: %v\n%s", err, tc.out.String())
	}
	if hasLinePrefix(tc.runner.Lines(), "git") {
		t.Errorf("expected no release commands, got %v", tc.runner.Lines())
	}
}

func TestUnknownCommand(t *testing.T) {
	tc := newTestCLI(t, t.TempDir(), nil)
	if err := tc.cli.Execute([]string{"deploy"}); err == nil {
		t.Error("expected an unknown command to fail")
	}
	if !strings.Contains(tc.out.String(), "unknown command") {
		t.Errorf("expected the error on the console, got %q", tc.out.String())
	}
}

func TestGraphCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
		children []string
	}{
		{
			name:     "named pipeline",
			args:     []string{"graph", "build", "--format", "json"},
			expected: "build",
			children: []string{"clean", "compile"},
		},
		{
			name:     "default pipeline",
			args:     []string{"graph", "-f", "json"},
			expected: "all",
			children: []string{"verify", "compile", "test-none", "copy-to-distribution"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCLI(t, t.TempDir(), nil)
			if err := tc.cli.Execute(tt.args); err != nil {
				t.Fatalf("graph failed: %v", err)
			}

			var graph engine.GraphDescription
			if err := json.Unmarshal(tc.out.Bytes(), &graph); err != nil {
				t.Fatalf("expected JSON output: %v\n%s", err, tc.out.String())
			}
			if graph.Name != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, graph.Name)
			}
			if len(graph.Children) != len(tt.children) {
				t.Fatalf("expected %d children, got %+v", len(tt.children), graph.Children)
			}
			for i, child := range graph.Children {
				if child.Name != tt.children[i] {
					t.Errorf("child %d: expected %s, got %s", i, tt.children[i], child.Name)
				}
			}
			if len(tc.runner.Lines()) != 0 {
				t.Error("graph must not run anything")
			}
		})
	}
}

func TestGraphCommand_YAML(t *testing.T) {
	tc := newTestCLI(t, t.TempDir(), nil)
	if err := tc.cli.Execute([]string{"graph", "clean"}); err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	output := tc.out.String()
	if !strings.Contains(output, "name: clean") || !strings.Contains(output, "kind: parallel") {
		t.Errorf("unexpected YAML output:\n%s", output)
	}
}

func TestGraphCommand_Errors(t *testing.T) {
	tc := newTestCLI(t, t.TempDir(), nil)
	if err := tc.cli.Execute([]string{"graph", "build", "--format", "xml"}); err == nil {
		t.Error("expected an unknown format to fail")
	}
	if err := tc.cli.Execute([]string{"graph", "deploy"}); !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	root := t.TempDir()

	tc := newTestCLI(t, root, nil)
	if err := tc.cli.Execute([]string{"status"}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(tc.out.String(), "No pipeline has run yet") {
		t.Errorf("expected empty status message, got %q", tc.out.String())
	}

	if err := tc.cli.Execute([]string{"clean"}); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	tc.out.Reset()
	if err := tc.cli.Execute([]string{"status"}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	output := strings.ToLower(tc.out.String())
	if !strings.Contains(output, "clean") || !strings.Contains(output, "succeeded") {
		t.Errorf("expected the clean run in the table, got:\n%s", tc.out.String())
	}
}

func TestStatusCommand_Interrupted(t *testing.T) {
	root := t.TempDir()
	sm := state.NewStateManager(root, nil)
	if _, err := sm.BeginRun("test", "run-1", time.Now()); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	tc := newTestCLI(t, root, nil)
	if err := tc.cli.Execute([]string{"status"}); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(tc.out.String(), "interrupted") {
		t.Errorf("expected an unlocked running record to show as interrupted, got:\n%s", tc.out.String())
	}
}

func TestCleanCommand_Twice(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "a.js"), "")
	writeFile(t, filepath.Join(root, "distribute", "a.js"), "")

	tc := newTestCLI(t, root, nil)
	for i := 0; i < 2; i++ {
		if err := tc.cli.Execute([]string{"clean"}); err != nil {
			t.Fatalf("clean %d failed: %v", i+1, err)
		}
	}
	for _, dir := range []string{"build", "distribute"} {
		if _, err := os.Stat(filepath.Join(root, dir)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", dir)
		}
	}
}

func TestPipelineCommand_Locked(t *testing.T) {
	root := t.TempDir()
	unlock, err := state.NewStateManager(root, nil).Lock("clean")
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}
	defer unlock()

	tc := newTestCLI(t, root, nil)
	err = tc.cli.Execute([]string{"clean"})
	if !errors.Is(err, state.ErrPipelineLocked) {
		t.Errorf("expected ErrPipelineLocked, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "forge.config.yaml"), "version: \"1.0\"\nnotifications:\n  enabled: true\n")

	var mu sync.Mutex
	var titles []string
	tc := newTestCLI(t, root, func(cfg *cli.Config) {
		cfg.Notify = func(title, message string) error {
			mu.Lock()
			defer mu.Unlock()
			titles = append(titles, title)
			return nil
		}
	})

	if err := tc.cli.Execute([]string{"clean"}); err != nil {
		t.Fatalf("clean failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 {
		t.Fatalf("expected one notification for the pipeline, got %v", titles)
	}
}

func TestGlobalFlags(t *testing.T) {
	root := t.TempDir()
	custom := filepath.Join(root, "ci", "forge.yaml")
	writeFile(t, custom, "version: \"1.0\"\nprojectType: go\n")

	tc := newTestCLI(t, t.TempDir(), nil)
	err := tc.cli.Execute([]string{"--root", root, "--config", custom, "--verbosity", "debug", "graph", "build", "-f", "json"})
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	// The go preset builds into bin.
	if !strings.Contains(tc.out.String(), "remove bin") {
		t.Errorf("unexpected output:\n%s", tc.out.String())
	}
}

func TestInvalidConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "forge.config.yaml"), "version: \"2.0\"\n")

	tc := newTestCLI(t, root, nil)
	err := tc.cli.Execute([]string{"build"})
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("expected a configuration error, got %v", err)
	}
	if len(tc.runner.Lines()) != 0 {
		t.Error("expected no task to run with an invalid configuration")
	}
}

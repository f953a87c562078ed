package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/toolchain"
	"github.com/colonise/forge/pkg/types"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeCompiler struct {
	rec  *recorder
	root string
	err  error
}

func (f *fakeCompiler) Compile(ctx context.Context) error {
	f.rec.add("compile")
	if f.err != nil {
		return f.err
	}
	out := filepath.Join(f.root, "build")
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	for _, name := range []string{"index.js", "index.spec.js"} {
		if err := os.WriteFile(filepath.Join(out, name), []byte(name), 0644); err != nil {
			return err
		}
	}
	return nil
}

type fakeLinter struct {
	rec *recorder
	err error
}

func (f *fakeLinter) Lint(ctx context.Context, files []string) ([]toolchain.Problem, error) {
	f.rec.add("lint")
	return []toolchain.Problem{{File: "source/index.ts", Line: 1, Message: "semicolon"}}, f.err
}

type fakeTests struct {
	rec *recorder
}

func (f *fakeTests) RunTests(ctx context.Context, req toolchain.TestRequest) error {
	if req.Hook != nil {
		f.rec.add("test+hook")
	} else {
		f.rec.add("test")
	}
	return nil
}

type fakeInstrumenter struct{ rec *recorder }

func (f *fakeInstrumenter) Instrument(ctx context.Context, files []string, outDir string) (toolchain.Instrumentation, error) {
	f.rec.add("instrument")
	return toolchain.Instrumentation{Files: files, OutDir: outDir}, nil
}

type fakeReporter struct{ rec *recorder }

func (f *fakeReporter) Report(ctx context.Context, inst toolchain.Instrumentation, dir string) error {
	f.rec.add("report")
	return nil
}

func testConfig() *types.ForgeConfig {
	return &types.ForgeConfig{
		Paths: types.PathsConfig{
			Source:          "source",
			Build:           "build",
			Coverage:        "coverage",
			Distribute:      "distribute",
			Instrumented:    ".nyc_output",
			Declarations:    []string{"source/**/*.d.ts"},
			Coverable:       []string{"build/**/*.js", "!build/**/*.spec.*"},
			TestFiles:       []string{"build/**/*.spec.js"},
			DebugTestFiles:  []string{"source/**/*.spec.ts"},
			DistributeFiles: []string{"build/**/*.*", "!build/**/*.spec.*"},
		},
		Toolchain: types.ToolchainConfig{TestFormat: types.TestFormatRaw},
	}
}

func newRegistry(t *testing.T, cfg *types.ForgeConfig, rec *recorder, release func() engine.Node) (*engine.Registry, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "source"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "source", "types.d.ts"), []byte("export {};"), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := New(root, cfg, Collaborators{
		Compiler:     &fakeCompiler{rec: rec, root: root},
		Linter:       &fakeLinter{rec: rec},
		TestRunner:   &fakeTests{rec: rec},
		Instrumenter: &fakeInstrumenter{rec: rec},
		Reporter:     &fakeReporter{rec: rec},
		Release:      release,
		Output:       io.Discard,
		Logger:       logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return registry, root
}

func run(t *testing.T, registry *engine.Registry, name string) error {
	t.Helper()
	node, err := registry.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", name, err)
	}
	return engine.NewRunner(logger.NewNop()).Run(context.Background(), node)
}

func TestNew_RegistersEveryPipeline(t *testing.T) {
	registry, _ := newRegistry(t, testConfig(), &recorder{}, nil)

	if got := strings.Join(registry.Names(), ","); got != strings.Join(Names, ",") {
		t.Errorf("Names() = %s", got)
	}
	if node, ok := registry.Default(); !ok || node.Name() != All {
		t.Errorf("default pipeline = %v, want all", node)
	}
}

func TestClean_Idempotent(t *testing.T) {
	registry, root := newRegistry(t, testConfig(), &recorder{}, nil)
	if err := os.MkdirAll(filepath.Join(root, "build", "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := run(t, registry, Clean); err != nil {
			t.Fatalf("clean run %d: %v", i+1, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "build")); !os.IsNotExist(err) {
		t.Error("build directory should be gone")
	}
}

func TestBuild_CopiesDeclarations(t *testing.T) {
	registry, root := newRegistry(t, testConfig(), &recorder{}, nil)

	if err := run(t, registry, Build); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "types.d.ts")); err != nil {
		t.Errorf("declaration not copied into build dir: %v", err)
	}
}

func TestAll_Order(t *testing.T) {
	rec := &recorder{}
	registry, root := newRegistry(t, testConfig(), rec, nil)

	if err := run(t, registry, All); err != nil {
		t.Fatalf("all: %v", err)
	}

	calls := rec.list()
	if got := strings.Join(calls, ","); got != "lint,compile,test" {
		t.Errorf("calls = %s, want lint,compile,test", got)
	}
	if _, err := os.Stat(filepath.Join(root, "distribute", "index.js")); err != nil {
		t.Errorf("artifact not distributed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "distribute", "index.spec.js")); !os.IsNotExist(err) {
		t.Error("test artifacts must not be distributed")
	}
}

func TestAll_LintCrashStopsPipeline(t *testing.T) {
	rec := &recorder{}
	root := t.TempDir()
	crash := errors.New("linter binary missing")

	registry, err := New(root, testConfig(), Collaborators{
		Compiler:     &fakeCompiler{rec: rec, root: root},
		Linter:       &fakeLinter{rec: rec, err: crash},
		TestRunner:   &fakeTests{rec: rec},
		Instrumenter: &fakeInstrumenter{rec: rec},
		Reporter:     &fakeReporter{rec: rec},
		Output:       io.Discard,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := New(root, testConfig(), Collaborators{Compiler: &fakeCompiler{rec: rec}, Linter: &fakeLinter{rec: rec}}); err == nil {
		t.Error("missing test runner must be rejected")
	}

	if err := run(t, registry, All); !errors.Is(err, crash) {
		t.Fatalf("expected lint crash to fail all, got %v", err)
	}
	for _, call := range rec.list() {
		if call == "compile" {
			t.Error("compile must not run after the verify step failed")
		}
	}
}

func TestCoverage_InstrumentsBeforeTests(t *testing.T) {
	rec := &recorder{}
	registry, _ := newRegistry(t, testConfig(), rec, nil)

	if err := run(t, registry, Coverage); err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if got := strings.Join(rec.list(), ","); got != "compile,instrument,test+hook,report" {
		t.Errorf("calls = %s", got)
	}

	node, _ := registry.Lookup(Coverage)
	leaves := strings.Join(engine.Leaves(node), ",")
	if !strings.Contains(leaves, "compile,clean-coverage,test-coverage") {
		t.Errorf("coverage leaves = %s", leaves)
	}
}

func TestTestAndDebug_NeverInstrument(t *testing.T) {
	for _, name := range []string{Test, Debug} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			registry, _ := newRegistry(t, testConfig(), rec, nil)
			if err := run(t, registry, name); err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			for _, call := range rec.list() {
				if call == "instrument" || call == "test+hook" {
					t.Errorf("%s instrumented: %v", name, rec.list())
				}
			}
		})
	}
}

func TestDistribute_Release(t *testing.T) {
	enabled, disabled := true, false
	releaseNode := func(rec *recorder) func() engine.Node {
		return func() engine.Node {
			return engine.Task("release", func(context.Context) error {
				rec.add("release")
				return nil
			})
		}
	}

	tests := []struct {
		name    string
		enabled *bool
		want    string
	}{
		{"enabled by default", nil, "compile,release"},
		{"explicitly enabled", &enabled, "compile,release"},
		{"disabled", &disabled, "compile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			cfg := testConfig()
			cfg.Release = &types.ReleaseConfig{Enabled: tt.enabled}
			registry, _ := newRegistry(t, cfg, rec, releaseNode(rec))

			if err := run(t, registry, Distribute); err != nil {
				t.Fatalf("distribute: %v", err)
			}
			if got := strings.Join(rec.list(), ","); got != tt.want {
				t.Errorf("calls = %s, want %s", got, tt.want)
			}
		})
	}
}

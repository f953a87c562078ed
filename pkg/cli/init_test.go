package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/colonise/forge/pkg/config"
	"github.com/colonise/forge/pkg/types"
)

func TestInitCommand_DetectsProjectType(t *testing.T) {
	tests := []struct {
		name         string
		projectFiles []string
		expectedType types.ProjectType
	}{
		{"Go module", []string{"go.mod"}, types.ProjectTypeGo},
		{"Node package", []string{"package.json"}, types.ProjectTypeNode},
		{"TypeScript sources", []string{"source/tsconfig.json"}, types.ProjectTypeNode},
		{"Go wins over package.json", []string{"go.mod", "package.json"}, types.ProjectTypeGo},
		{"Unknown project", nil, types.ProjectTypeNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, file := range tt.projectFiles {
				writeFile(t, filepath.Join(root, file), "{}")
			}

			tc := newTestCLI(t, root, nil)
			if err := tc.cli.Execute([]string{"init"}); err != nil {
				t.Fatalf("init failed: %v", err)
			}

			path := filepath.Join(root, "forge.config.yaml")
			cfg, err := config.NewManager().LoadConfig(path)
			if err != nil {
				t.Fatalf("generated configuration does not load: %v", err)
			}
			if cfg.ProjectType != tt.expectedType {
				t.Errorf("expected project type %s, got %s", tt.expectedType, cfg.ProjectType)
			}
		})
	}
}

func TestInitCommand_Preset(t *testing.T) {
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)

	if err := tc.cli.Execute([]string{"init", "--preset", "go"}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "forge.config.yaml"))
	if err != nil {
		t.Fatalf("expected a config file: %v", err)
	}
	content := string(data)
	for _, expected := range []string{"projectType: go", "gotestsum", "compile: 5m0s"} {
		if !strings.Contains(content, expected) {
			t.Errorf("expected %q in generated config:\n%s", expected, content)
		}
	}
}

func TestInitCommand_ExistingConfiguration(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "forge.config.yaml")
	writeFile(t, path, "version: \"1.0\"\n")

	tc := newTestCLI(t, root, nil)
	err := tc.cli.Execute([]string{"init"})
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected init to refuse overwriting, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "version: \"1.0\"\n" {
		t.Error("existing configuration was modified")
	}

	if err := tc.cli.Execute([]string{"init", "--force", "--preset", "node"}); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "alsatian") {
		t.Errorf("expected the node preset to be written, got:\n%s", data)
	}
}

func TestInitCommand_InvalidPreset(t *testing.T) {
	root := t.TempDir()
	tc := newTestCLI(t, root, nil)

	err := tc.cli.Execute([]string{"init", "--preset", "cobol"})
	if err == nil {
		t.Fatal("expected an unknown preset to fail")
	}
	if _, statErr := os.Stat(filepath.Join(root, "forge.config.yaml")); !os.IsNotExist(statErr) {
		t.Error("no configuration should be written for an unknown preset")
	}
}

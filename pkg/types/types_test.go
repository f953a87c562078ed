package types_test

import (
	"testing"

	"github.com/colonise/forge/pkg/types"
)

func TestParseExecutionMode(t *testing.T) {
	tests := []struct {
		input   string
		want    types.ExecutionMode
		wantErr bool
	}{
		{"none", types.ExecutionModeNone, false},
		{"Result", types.ExecutionModeResult, false},
		{" coverage ", types.ExecutionModeCoverage, false},
		{"verbose", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := types.ParseExecutionMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExecutionMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseExecutionMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestReleaseConfig_IsEnabled(t *testing.T) {
	disabled := false
	enabled := true

	tests := []struct {
		name string
		cfg  *types.ReleaseConfig
		want bool
	}{
		{"nil config", nil, false},
		{"unset flag", &types.ReleaseConfig{}, true},
		{"explicitly enabled", &types.ReleaseConfig{Enabled: &enabled}, true},
		{"explicitly disabled", &types.ReleaseConfig{Enabled: &disabled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsEnabled(); got != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationConfig_IsEnabled(t *testing.T) {
	var nilConfig *types.NotificationConfig
	if nilConfig.IsEnabled() {
		t.Error("nil notification config should be disabled")
	}
	if (&types.NotificationConfig{}).IsEnabled() {
		t.Error("notifications default to disabled")
	}
	enabled := true
	if !(&types.NotificationConfig{Enabled: &enabled}).IsEnabled() {
		t.Error("expected notifications enabled")
	}
}

func TestCommandConfig_String(t *testing.T) {
	cmd := types.CommandConfig{Command: "go", Args: []string{"build", "./..."}}
	if got := cmd.String(); got != "go build ./..." {
		t.Errorf("String() = %q", got)
	}
	if !(types.CommandConfig{Command: "  "}).IsZero() {
		t.Error("blank command should be zero")
	}
}

package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	pcontext "github.com/colonise/forge/pkg/context"
	"github.com/colonise/forge/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_WithTask(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.WithTask("compile").Info("Starting...")

	output := buf.String()
	if !strings.Contains(output, "'compile' Starting...") {
		t.Errorf("expected quoted task name before message, got %q", output)
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("build completed")

	if !strings.Contains(buf.String(), "✔ build completed") {
		t.Error("expected success message in log output")
	}
}

func TestLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("test message",
		logger.WithField("zeta", 1),
		logger.WithField("alpha", "a"),
	)

	if !strings.Contains(buf.String(), "{alpha=a, zeta=1}") {
		t.Errorf("expected sorted fields, got %q", buf.String())
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}

func TestLogger_WithContextAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	base := logger.CreateLoggerWithOutput("info", &buf)

	ctx := pcontext.WithRunID(context.Background(), "run_fixed")
	logger.WithContext(ctx, base).WithTask("lint").Info("checked")

	output := buf.String()
	if !strings.Contains(output, "run_id=run_fixed") {
		t.Errorf("expected run id field, got %q", output)
	}
	if !strings.Contains(output, "'lint'") {
		t.Errorf("expected task name, got %q", output)
	}
}

func TestNewNop(t *testing.T) {
	log := logger.NewNop()
	log.Error("discarded")
	log.WithTask("x").Success("discarded")
}

func TestConsoleLogger(t *testing.T) {
	var out, errOut bytes.Buffer
	console := logger.NewConsoleLogger(&out, &errOut)

	console.Info("starting")
	console.Warn("careful")
	console.Success("done")
	console.Error("broken")

	for _, want := range []string{"starting", "careful", "done"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q on stdout, got %q", want, out.String())
		}
	}
	if strings.Contains(out.String(), "broken") {
		t.Error("errors should not be written to stdout")
	}
	if !strings.Contains(errOut.String(), "broken") {
		t.Errorf("expected the error on stderr, got %q", errOut.String())
	}
}

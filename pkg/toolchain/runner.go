// Package toolchain runs the external collaborators a pipeline depends on:
// compiler, linter, test runner, coverage instrumenter and reporter. Each is
// a configured command executed as a child process.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/colonise/forge/pkg/logger"
)

var (
	// ErrCommandNameMissing indicates a collaborator has no command configured.
	ErrCommandNameMissing = errors.New("command name not provided")
)

// Command is a fully expanded process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
	// Stdout and Stderr, when set, receive output as it is produced in
	// addition to the captured copy in Result.
	Stdout io.Writer
	Stderr io.Writer
	// LogName selects the per-collaborator log file output is appended to.
	LogName string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result captures observable command results.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// CommandFailedError reports a command that ran and exited non-zero.
type CommandFailedError struct {
	Command Command
	Result  Result
}

func (e *CommandFailedError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command.String(), e.Result.ExitCode)

	detail := strings.TrimSpace(e.Result.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Result.Stdout)
	}
	if detail == "" {
		return msg
	}

	lines := strings.Split(detail, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(normalized, " | "))
}

// CommandExecutionError reports a command that could not be started or was
// interrupted before it could exit on its own.
type CommandExecutionError struct {
	Command Command
	Cause   error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Command.Name, e.Cause)
}

func (e *CommandExecutionError) Unwrap() error { return e.Cause }

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	logger logger.Logger
	// LogDir, when set, receives one append-only log file per LogName.
	LogDir string
}

// NewExecRunner creates a runner that logs invocations through log.
func NewExecRunner(log logger.Logger, logDir string) *ExecRunner {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExecRunner{logger: log, LogDir: logDir}
}

// Run executes cmd and waits for it. Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return Result{}, ErrCommandNameMissing
	}

	logFile, err := r.prepareLogFile(cmd.LogName)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = tee(&stdout, cmd.Stdout, logFile)
	proc.Stderr = tee(&stderr, cmd.Stderr, logFile)

	r.logger.Debug("Executing command",
		logger.WithField("command", cmd.String()),
		logger.WithField("dir", cmd.Dir))
	writeLog(logFile, fmt.Sprintf("\n=== %s: %s ===\n", time.Now().Format("2006-01-02 15:04:05"), cmd.String()))

	start := time.Now()
	runErr := proc.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: proc.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		writeLog(logFile, fmt.Sprintf("=== exit 0 after %s ===\n", result.Duration))
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && ctx.Err() == nil {
		writeLog(logFile, fmt.Sprintf("=== exit %d after %s ===\n", result.ExitCode, result.Duration))
		return result, &CommandFailedError{Command: cmd, Result: result}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		runErr = fmt.Errorf("%w (%v)", ctxErr, runErr)
	}
	writeLog(logFile, fmt.Sprintf("=== execution error: %v ===\n", runErr))
	return result, &CommandExecutionError{Command: cmd, Cause: runErr}
}

func (r *ExecRunner) prepareLogFile(name string) (*os.File, error) {
	if r.LogDir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(r.LogDir, name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}

func tee(capture *bytes.Buffer, stream io.Writer, logFile *os.File) io.Writer {
	writers := []io.Writer{capture}
	if stream != nil {
		writers = append(writers, stream)
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}
	if len(writers) == 1 {
		return capture
	}
	return io.MultiWriter(writers...)
}

func writeLog(logFile *os.File, message string) {
	if logFile != nil {
		logFile.WriteString(message)
	}
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

// Package mocks provides test doubles for the collaborators forge drives.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/colonise/forge/pkg/toolchain"
)

// Response is the scripted outcome of one command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// MockRunner is a toolchain.Runner that records every command and answers
// from scripted responses keyed by command-line prefix.
type MockRunner struct {
	mu        sync.Mutex
	commands  []toolchain.Command
	responses map[string]Response
}

// NewMockRunner creates a runner that succeeds with empty output unless told
// otherwise.
func NewMockRunner() *MockRunner {
	return &MockRunner{responses: make(map[string]Response)}
}

// On scripts the response for commands whose rendered line starts with
// prefix. The longest matching prefix wins.
func (m *MockRunner) On(prefix string, response Response) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prefix] = response
	return m
}

// Run records cmd and returns its scripted response. A non-zero exit code
// yields a *toolchain.CommandFailedError, like a real command.
func (m *MockRunner) Run(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	response, _ := m.lookup(cmd.String())
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return toolchain.Result{}, &toolchain.CommandExecutionError{Command: cmd, Cause: err}
	}
	if response.Err != nil {
		return toolchain.Result{}, &toolchain.CommandExecutionError{Command: cmd, Cause: response.Err}
	}

	result := toolchain.Result{Stdout: response.Stdout, Stderr: response.Stderr, ExitCode: response.ExitCode}
	if cmd.Stdout != nil && response.Stdout != "" {
		fmt.Fprint(cmd.Stdout, response.Stdout)
	}
	if response.ExitCode != 0 {
		return result, &toolchain.CommandFailedError{Command: cmd, Result: result}
	}
	return result, nil
}

func (m *MockRunner) lookup(line string) (Response, bool) {
	best, found := "", false
	for prefix := range m.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	return m.responses[best], found
}

// Commands returns every command run so far.
func (m *MockRunner) Commands() []toolchain.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]toolchain.Command(nil), m.commands...)
}

// Lines returns the rendered command lines run so far.
func (m *MockRunner) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, 0, len(m.commands))
	for _, cmd := range m.commands {
		lines = append(lines, cmd.String())
	}
	return lines
}

// Reset forgets recorded commands but keeps scripted responses.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

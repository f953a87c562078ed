// Package coverage builds the test task. Depending on its execution mode the
// task discards test output, streams formatted results, or instruments the
// build, runs the tests with the coverage hook installed and writes a report.
package coverage

import (
	"errors"
	"sync"

	"github.com/colonise/forge/pkg/toolchain"
)

var (
	// ErrHookNotInstalled is returned when tests are about to run against an
	// instrumentation whose hook was never installed.
	ErrHookNotInstalled = errors.New("coverage hook not installed")

	// ErrSessionClosed is returned when a finished session is reused.
	ErrSessionClosed = errors.New("coverage session already reported")
)

// SessionState tracks where an instrumentation session is in its lifecycle.
type SessionState int

const (
	SessionInstrumented SessionState = iota
	SessionHookInstalled
	SessionReported
)

func (s SessionState) String() string {
	switch s {
	case SessionInstrumented:
		return "instrumented"
	case SessionHookInstalled:
		return "hook-installed"
	case SessionReported:
		return "reported"
	default:
		return "unknown"
	}
}

// Session is the per-run instrumentation context. It is created from the
// instrumenter's output and moves strictly forward: instrumented, hook
// installed, reported.
type Session struct {
	mu    sync.Mutex
	inst  toolchain.Instrumentation
	state SessionState
}

// NewSession wraps freshly instrumented artifacts.
func NewSession(inst toolchain.Instrumentation) *Session {
	return &Session{inst: inst, state: SessionInstrumented}
}

// Instrumentation returns the instrumented artifacts.
func (s *Session) Instrumentation() toolchain.Instrumentation {
	return s.inst
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Install installs the coverage hook and returns it for the test run.
// Installing twice returns the same hook.
func (s *Session) Install() (*toolchain.Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionReported {
		return nil, ErrSessionClosed
	}
	s.state = SessionHookInstalled
	hook := s.inst.Hook
	return &hook, nil
}

// Hook returns the installed hook, or ErrHookNotInstalled.
func (s *Session) Hook() (*toolchain.Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionHookInstalled:
		hook := s.inst.Hook
		return &hook, nil
	case SessionReported:
		return nil, ErrSessionClosed
	default:
		return nil, ErrHookNotInstalled
	}
}

func (s *Session) markReported() {
	s.mu.Lock()
	s.state = SessionReported
	s.mu.Unlock()
}

// Package process ties the run context to the lifecycle of the forge process
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/colonise/forge/pkg/logger"
)

// Manager cancels the run context on SIGINT or SIGTERM and runs shutdown
// handlers.
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	sigChan          chan os.Signal
	stop             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{logger: log}
}

// RegisterShutdownHandler adds a handler run once on shutdown. Handlers run
// in reverse registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start returns a context derived from parent that is cancelled when the
// process receives SIGINT or SIGTERM. Running tasks see the cancellation and
// the current pipeline stops before its next step.
func (m *Manager) Start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		cancel()
		return ctx
	}
	m.running = true
	m.sigChan = make(chan os.Signal, 1)
	m.stop = make(chan struct{})
	sigChan, stop := m.sigChan, m.stop
	m.mu.Unlock()

	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		select {
		case sig := <-sigChan:
			m.logger.Warn("Received signal, stopping", logger.WithField("signal", sig))
			m.handleShutdown()
		case <-ctx.Done():
		case <-stop:
		}
	}()
	return ctx
}

// Signal delivers sig as if the process had received it.
func (m *Manager) Signal(sig os.Signal) {
	m.mu.Lock()
	sigChan := m.sigChan
	m.mu.Unlock()
	if sigChan == nil {
		return
	}
	select {
	case sigChan <- sig:
	default:
	}
}

// Stop releases signal handling. The context returned by Start is cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	signal.Stop(m.sigChan)
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.mu.Lock()
	handlers := append([]func(){}, m.shutdownHandlers...)
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

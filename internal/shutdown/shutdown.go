// Package shutdown runs cleanup hooks once the child process has exited.
package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/meshrender/internal/logging"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Manager runs registered hooks once, newest first.
type Manager struct {
	hooks   []hook
	mu      sync.Mutex
	timeout time.Duration
	logger  *logging.Logger
	once    sync.Once
}

// New creates a manager whose hooks share one timeout.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown hook
// Hooks are called in reverse order (LIFO)
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown executes all registered hooks. Errors are logged and collected;
// later calls are no-ops.
func (m *Manager) Shutdown() []error {
	var errs []error
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		for i := len(m.hooks) - 1; i >= 0; i-- {
			h := m.hooks[i]
			m.logger.Debug("running shutdown hook", logging.Fields{"hook": h.name})
			if err := h.fn(ctx); err != nil {
				err = fmt.Errorf("shutdown hook %s: %w", h.name, err)
				m.logger.Warn(err.Error())
				errs = append(errs, err)
			}
		}
	})
	return errs
}

// CloseResource creates a hook for an io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(ctx context.Context) error {
		return closer.Close()
	}
}

// Package resource manages the lazy lifecycle of the expensive inference
// resources: loaded on first demand, reaped after sitting idle.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/metrics"
)

// State is the lifecycle state of the managed resource.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
)

// Manager guards an expensive resource behind a three-state lifecycle.
// EnsureLoaded loads on demand and marks the caller in flight; Done releases
// the caller; the reaper unloads only when nothing is in flight and the idle
// timeout has passed.
type Manager struct {
	cfg      config.ResourceConfig
	clock    clockwork.Clock
	acquirer domain.ResourceAcquirer

	mu       sync.Mutex
	state    State
	inFlight int
	lastUsed time.Time
	loading  chan struct{} // non-nil while a load is running, closed on finish
}

// NewManager creates a manager in the unloaded state.
func NewManager(cfg config.ResourceConfig, acquirer domain.ResourceAcquirer, clock clockwork.Clock) *Manager {
	return &Manager{
		cfg:      cfg,
		clock:    clock,
		acquirer: acquirer,
		state:    StateUnloaded,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InFlight returns the number of callers currently holding the resource.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// EnsureLoaded makes sure the resource is loaded and registers the caller as
// in flight. Every successful call must be paired with Done. Concurrent
// callers during a load wait for the same load instead of starting another.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch m.state {
		case StateLoaded:
			m.inFlight++
			m.lastUsed = m.clock.Now()
			m.mu.Unlock()
			return nil

		case StateLoading:
			wait := m.loading
			m.mu.Unlock()
			select {
			case <-wait:
				// Load finished one way or the other; re-check the state.
			case <-ctx.Done():
				return ctx.Err()
			}

		case StateUnloaded:
			m.state = StateLoading
			m.loading = make(chan struct{})
			m.mu.Unlock()

			start := m.clock.Now()
			err := m.acquirer.Acquire(ctx)

			m.mu.Lock()
			close(m.loading)
			m.loading = nil
			if err != nil {
				m.state = StateUnloaded
				m.mu.Unlock()
				return fmt.Errorf("acquire resource: %w", err)
			}
			m.state = StateLoaded
			m.inFlight++
			m.lastUsed = m.clock.Now()
			m.mu.Unlock()

			metrics.ResourceLoadsTotal.Inc()
			metrics.ResourceLoadDurationSeconds.Observe(m.clock.Now().Sub(start).Seconds())
			metrics.ResourceLoaded.Set(1)
			slog.Info("resource loaded")
			return nil
		}
	}
}

// Done releases one in-flight hold and refreshes the idle clock.
func (m *Manager) Done() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight > 0 {
		m.inFlight--
	}
	m.lastUsed = m.clock.Now()
}

// ReapIfIdle unloads the resource if it is loaded, unused, and idle past the
// timeout. Returns whether an unload happened.
func (m *Manager) ReapIfIdle(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.state != StateLoaded || m.inFlight > 0 || m.clock.Now().Sub(m.lastUsed) < m.cfg.IdleTimeout {
		m.mu.Unlock()
		return false, nil
	}
	// Block new loads while releasing.
	m.state = StateLoading
	m.loading = make(chan struct{})
	m.mu.Unlock()

	err := m.acquirer.Release(ctx)

	m.mu.Lock()
	close(m.loading)
	m.loading = nil
	m.state = StateUnloaded
	m.mu.Unlock()

	if err != nil {
		return true, fmt.Errorf("release resource: %w", err)
	}

	metrics.ResourceUnloadsTotal.Inc()
	metrics.ResourceLoaded.Set(0)
	slog.Info("resource reaped after idle timeout", "idle_timeout", m.cfg.IdleTimeout)
	return true, nil
}

// Run drives the periodic reaper until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := m.ReapIfIdle(ctx); err != nil {
				slog.Error("resource reap failed", "error", err)
			}
		}
	}
}

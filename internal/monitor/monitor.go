// Package monitor manages the currently selected capture target.
package monitor

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/filter"
	"firestige.xyz/procsniff/internal/retriever"
)

// Opener opens a capture source for one retriever.
type Opener func(cfg config.CaptureConfig) (capture.Source, error)

// Manager holds at most one running retriever. Selecting a new target stops
// and joins the previous retriever before the next one opens its source.
type Manager struct {
	mu      sync.RWMutex
	current *retriever.Retriever
	cfg     config.CaptureConfig
	open    Opener
	opts    []retriever.Option
	closed  bool
}

// NewManager creates a manager that opens sources with capture.Open.
func NewManager(cfg config.CaptureConfig, opts ...retriever.Option) *Manager {
	return NewManagerWithOpener(cfg, capture.Open, opts...)
}

// NewManagerWithOpener creates a manager with a custom source opener.
func NewManagerWithOpener(cfg config.CaptureConfig, open Opener, opts ...retriever.Option) *Manager {
	return &Manager{
		cfg:  cfg,
		open: open,
		opts: opts,
	}
}

// Select replaces the current retriever with a new one capturing for target.
func (m *Manager) Select(target filter.Target) (*retriever.Retriever, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("select: empty target")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("select %s: manager closed", target)
	}

	m.stopCurrent()

	src, err := m.open(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("open capture for %s: %w", target, err)
	}

	r := retriever.New(target, src, m.opts...)
	if err := r.Run(); err != nil {
		r.Stop()
		return nil, fmt.Errorf("run retriever for %s: %w", target, err)
	}

	m.current = r
	logrus.WithFields(logrus.Fields{
		"retriever": r.ID(),
		"target":    target.String(),
		"device":    r.Device(),
	}).Info("target selected")
	return r, nil
}

// Deselect stops the current retriever, if any.
func (m *Manager) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCurrent()
}

// Current returns the running or most recently stopped retriever, nil when
// nothing is selected.
func (m *Manager) Current() *retriever.Retriever {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Close stops the current retriever and rejects further selections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCurrent()
	m.closed = true
	return nil
}

// stopCurrent must be called with mu held.
func (m *Manager) stopCurrent() {
	if m.current == nil {
		return
	}
	m.current.Stop()
	logrus.WithField("retriever", m.current.ID()).Info("target deselected")
	m.current = nil
}

package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager owns the lifecycle of all registered channels.
type Manager struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewManager creates an empty channel manager.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// RegisterChannel adds a channel to the manager.
func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// StartAll starts every registered channel. A channel that fails to start is
// logged and its error is returned joined with the others; the remaining
// channels are still started.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	var errs []error
	for _, name := range m.namesLocked() {
		slog.Info("starting channel", "channel", name)
		if err := m.channels[name].Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// StopAll gracefully stops all channels.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slog.Info("stopping all channels")

	var errs []error
	for _, name := range m.namesLocked() {
		if err := m.channels[name].Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	slog.Info("all channels stopped")
	return errors.Join(errs...)
}

// ChannelStatus is one entry of GetStatus.
type ChannelStatus struct {
	Running bool `json:"running"`
}

// GetStatus returns the running status of all channels.
func (m *Manager) GetStatus() map[string]ChannelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]ChannelStatus, len(m.channels))
	for name, channel := range m.channels {
		status[name] = ChannelStatus{Running: channel.IsRunning()}
	}
	return status
}

// Healthy reports whether at least one channel is registered and all of them
// are running.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		return false
	}
	for _, channel := range m.channels {
		if !channel.IsRunning() {
			return false
		}
	}
	return true
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package state

import (
	"sync"
	"time"
)

// Manager guards BotState and writes every change to disk.
type Manager struct {
	mu       sync.Mutex
	state    *BotState
	filePath string
}

// NewManager creates a Manager, loading state from disk if present.
func NewManager(filePath string) (*Manager, error) {
	st, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	return &Manager{state: st, filePath: filePath}, nil
}

// GetState returns a copy of the current state.
func (m *Manager) GetState() BotState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// PollingOffset returns the next Telegram update offset to request.
func (m *Manager) PollingOffset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.PollingOffset
}

// SetPollingOffset stores the offset. Offsets never move backwards.
func (m *Manager) SetPollingOffset(offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset <= m.state.PollingOffset {
		return nil
	}
	m.state.PollingOffset = offset
	return SaveState(m.filePath, m.state)
}

// MarkScan records the start time of the latest completed scan.
func (m *Manager) MarkScan(at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastScanAt = at
	return SaveState(m.filePath, m.state)
}

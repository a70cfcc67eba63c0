package repository

import (
	"sync"
)

type mockSyncer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockSyncer) RequestSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *mockSyncer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

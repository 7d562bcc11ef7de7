package storage

import (
	"context"
	"fmt"
	"sync"

	"swell-alerts/internal/window"
)

// MemoryStore keeps notified windows for the lifetime of the process. It
// backs deployments without a database: dedup state then resets on restart,
// which at worst repeats one notification per rule.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]window.Span
}

// NewMemoryStore constructs an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]window.Span)}
}

func memoryKey(chatID int64, spotID, fingerprint string) string {
	return fmt.Sprintf("%d|%s|%s", chatID, spotID, fingerprint)
}

func (m *MemoryStore) LastWindow(_ context.Context, chatID int64, spotID, fingerprint string) (*window.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	span, ok := m.windows[memoryKey(chatID, spotID, fingerprint)]
	if !ok {
		return nil, nil
	}
	return &span, nil
}

func (m *MemoryStore) SaveWindow(_ context.Context, w NotifiedWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[memoryKey(w.ChatID, w.SpotID, w.RuleFingerprint)] = window.Span{StartMs: w.StartMs, EndMs: w.EndMs}
	return nil
}

var _ WindowStore = (*MemoryStore)(nil)

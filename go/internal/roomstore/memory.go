package roomstore

import (
	"context"
	"sync"

	"github.com/mcdev12/basta/go/internal/models"
)

// Memory keeps encoded snapshots in process memory. Nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	blob, ok := m.blobs[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(blob)
}

func (m *Memory) Put(ctx context.Context, roomID string, state *models.RoomState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := encode(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[roomID] = blob
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

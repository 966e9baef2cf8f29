// Package roomstore persists room snapshots so a room survives a process restart.
//
// Every backend stores the full RoomState as one JSON blob under a fixed key
// per room. Writes are whole-snapshot upserts; there is no partial update.
package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/basta/go/internal/models"
)

// StateKey is the key each room's snapshot is stored under.
const StateKey = "room_state:v1"

// ErrNotFound is returned by Get when the room has never been persisted.
var ErrNotFound = errors.New("room snapshot not found")

// Store loads and saves room snapshots.
type Store interface {
	Get(ctx context.Context, roomID string) (*models.RoomState, error)
	Put(ctx context.Context, roomID string, state *models.RoomState) error
	Close() error
}

func encode(state *models.RoomState) ([]byte, error) {
	if state == nil {
		return nil, errors.New("nil room state")
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal room state: %w", err)
	}
	return blob, nil
}

func decode(blob []byte) (*models.RoomState, error) {
	var state models.RoomState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("unmarshal room state: %w", err)
	}
	return &state, nil
}

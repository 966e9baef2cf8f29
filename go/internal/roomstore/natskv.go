package roomstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mcdev12/basta/go/internal/models"
)

// NATSKV stores snapshots in a JetStream key-value bucket.
type NATSKV struct {
	kv jetstream.KeyValue
}

// OpenNATSKV creates the bucket if needed. History is 1: only the latest snapshot matters.
func OpenNATSKV(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSKV, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "room state snapshots",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket %s: %w", bucket, err)
	}
	return &NATSKV{kv: kv}, nil
}

// kvKey maps a room to its key; ':' is not a legal KV key character.
func kvKey(roomID string) string {
	return roomID + "." + strings.ReplaceAll(StateKey, ":", "_")
}

func (n *NATSKV) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	entry, err := n.kv.Get(ctx, kvKey(roomID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get room %s: %w", roomID, err)
	}
	return decode(entry.Value())
}

func (n *NATSKV) Put(ctx context.Context, roomID string, state *models.RoomState) error {
	blob, err := encode(state)
	if err != nil {
		return err
	}
	if _, err := n.kv.Put(ctx, kvKey(roomID), blob); err != nil {
		return fmt.Errorf("kv put room %s: %w", roomID, err)
	}
	return nil
}

// Close is a no-op; the NATS connection is owned by the caller.
func (n *NATSKV) Close() error { return nil }

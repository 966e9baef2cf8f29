package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
	"github.com/mcdev12/basta/go/internal/session"
)

var (
	// ErrHubClosed is returned by Acquire once Close has been called.
	ErrHubClosed = errors.New("room hub closed")
	// ErrRoomNotFound is returned by Snapshot for a room that is neither
	// running nor stored.
	ErrRoomNotFound = errors.New("room not found")
)

// Hub owns the running room actors. An actor is started on first use and
// stopped when the last connection releases it; its state lives on in the store.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*hostedRoom
	stopping map[string]<-chan struct{}
	closed   bool

	opts    session.Options
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type hostedRoom struct {
	actor  *session.Actor
	cancel context.CancelFunc
	refs   int
}

// NewHub creates a hub whose actors are built from opts.
func NewHub(opts session.Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:    make(map[string]*hostedRoom),
		stopping: make(map[string]<-chan struct{}),
		opts:     opts,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Acquire returns the actor for roomID, starting it if needed. Every
// successful Acquire must be paired with a Release.
func (h *Hub) Acquire(ctx context.Context, roomID string) (*session.Actor, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrHubClosed
		}
		// an actor still flushing its last write must finish before a new one loads the room
		if done, ok := h.stopping[roomID]; ok {
			h.mu.Unlock()
			select {
			case <-done:
				h.mu.Lock()
				if h.stopping[roomID] == done {
					delete(h.stopping, roomID)
				}
				h.mu.Unlock()
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		room, ok := h.rooms[roomID]
		if !ok {
			actorCtx, cancel := context.WithCancel(h.baseCtx)
			room = &hostedRoom{actor: session.New(roomID, h.opts), cancel: cancel}
			h.rooms[roomID] = room
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				room.actor.Run(actorCtx)
			}()
			log.Info().Str("room_id", roomID).Msg("room actor started")
		}
		room.refs++
		h.mu.Unlock()
		return room.actor, nil
	}
}

// Release drops one reference to the room; the actor stops at zero.
func (h *Hub) Release(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	room.refs--
	if room.refs > 0 {
		return
	}
	delete(h.rooms, roomID)
	h.stopping[roomID] = room.actor.Done()
	room.cancel()
	log.Info().Str("room_id", roomID).Msg("room actor stopped")
}

// Snapshot returns the state of roomID, hydrating it from the store for the
// duration of the call if no actor is running. A room that was never stored
// is not created.
func (h *Hub) Snapshot(ctx context.Context, roomID string) (*models.RoomState, error) {
	h.mu.Lock()
	_, running := h.rooms[roomID]
	h.mu.Unlock()

	if !running {
		_, err := h.opts.Store.Get(ctx, roomID)
		switch {
		case errors.Is(err, roomstore.ErrNotFound):
			return nil, ErrRoomNotFound
		case err != nil:
			return nil, fmt.Errorf("load room %s: %w", roomID, err)
		}
	}

	actor, err := h.Acquire(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer h.Release(roomID)
	return actor.Snapshot(ctx)
}

// ActiveRooms returns the number of running actors.
func (h *Hub) ActiveRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close stops every actor and waits for them to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.rooms = make(map[string]*hostedRoom)
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	log.Info().Msg("room hub closed")
}

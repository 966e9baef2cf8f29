package roomstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/basta/go/internal/models"
)

func sampleState(roomID string) *models.RoomState {
	s := models.NewRoomState(roomID, models.DefaultRoomConfig())
	deadline := int64(1_773_489_600_000)
	s.Status = models.RoomStatusReview
	s.CurrentLetter = "M"
	s.Players = []models.Player{
		{ID: "a", Name: "Ana", IsHost: true, IsConnected: true, Score: 150},
		{ID: "b", Name: "Beto", IsConnected: false},
	}
	s.Answers["a"] = map[string]string{"Animal": "Mono"}
	s.Votes["a"] = map[string][]string{"Animal": {"b"}}
	s.RoundsPlayed = 1
	s.StoppedBy = "a"
	s.Timers.VotingEndsAt = &deadline
	return s
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing room", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody-here")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		want := sampleState("room-put")
		require.NoError(t, store.Put(ctx, "room-put", want))

		got, err := store.Get(ctx, "room-put")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		first := sampleState("room-over")
		require.NoError(t, store.Put(ctx, "room-over", first))

		second := first.Clone()
		second.Status = models.RoomStatusLobby
		second.CurrentLetter = ""
		second.Timers = models.Timers{}
		require.NoError(t, store.Put(ctx, "room-over", second))

		got, err := store.Get(ctx, "room-over")
		require.NoError(t, err)
		assert.Equal(t, models.RoomStatusLobby, got.Status)
		assert.Nil(t, got.Timers.VotingEndsAt)
	})

	t.Run("rooms are isolated", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "room-x", sampleState("room-x")))
		_, err := store.Get(ctx, "room-y")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nil state", func(t *testing.T) {
		assert.Error(t, store.Put(ctx, "room-nil", nil))
	})
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	state := sampleState("r")
	require.NoError(t, store.Put(ctx, "r", state))

	state.Players[0].Score = 9999
	got, err := store.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 150, got.Players[0].Score)
}

func TestSQLite(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rooms.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "r", sampleState("r")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "M", got.CurrentLetter)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, Options{Driver: DriverNATS})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: DriverSQLite})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "redis"})
	assert.Error(t, err)
}

func TestKVKey(t *testing.T) {
	assert.Equal(t, "abc-123.room_state_v1", kvKey("abc-123"))
}

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
	"github.com/mcdev12/basta/go/internal/session"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testServer struct {
	*httptest.Server
	service *Service
	store   *roomstore.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := roomstore.NewMemory()
	service := NewService(DefaultConnectionConfig(), session.Options{
		Store: store,
		Clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		Game: models.RoomConfig{
			TotalRounds:     2,
			RoundDuration:   60,
			ReviewDuration:  30,
			ResultsDuration: 10,
			Categories:      []string{"Animal", "Color"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		service.Start(ctx)
	}()

	router := mux.NewRouter()
	service.RegisterRoutes(router)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &testServer{Server: srv, service: service, store: store}
}

func (s *testServer) dial(t *testing.T, roomID, playerID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/rooms/" + roomID + "/ws?playerId=" + playerID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	// every connection is greeted with SYSTEM then the current state
	assert.Equal(t, session.TypeSystem, readMessage(t, conn).Type)
	assert.Equal(t, session.TypeUpdateState, readMessage(t, conn).Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wireMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

// readState reads messages until an UPDATE_STATE satisfying ok arrives.
func readState(t *testing.T, conn *websocket.Conn, ok func(*models.RoomState) bool) *models.RoomState {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type != session.TypeUpdateState {
			continue
		}
		var state models.RoomState
		require.NoError(t, json.Unmarshal(msg.Payload, &state))
		if ok(&state) {
			return &state
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func hasPlayers(n int) func(*models.RoomState) bool {
	return func(s *models.RoomState) bool { return len(s.Players) == n }
}

func TestJoinIsBroadcastToEveryConnection(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "lobby-1", "alice")
	bob := srv.dial(t, "lobby-1", "bob")

	send(t, alice, `{"type":"JOIN","payload":{"name":"Alice"}}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		state := readState(t, conn, hasPlayers(1))
		assert.Equal(t, "alice", state.Players[0].ID)
		assert.True(t, state.Players[0].IsHost)
	}
}

func TestRejectedActionOnlyReachesSender(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "lobby-2", "alice")
	bob := srv.dial(t, "lobby-2", "bob")

	send(t, alice, `{"type":"JOIN","payload":{"name":"Alice"}}`)
	readState(t, alice, hasPlayers(1))
	readState(t, bob, hasPlayers(1))

	send(t, bob, `{"type":"START_GAME"}`)
	msg := readMessage(t, bob)
	require.Equal(t, session.TypeError, msg.Type)
	var payload session.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "UNKNOWN_PLAYER", string(payload.Code))

	// alice sees the next accepted change, not bob's error
	send(t, bob, `{"type":"JOIN","payload":{"name":"Bob"}}`)
	next := readMessage(t, alice)
	assert.Equal(t, session.TypeUpdateState, next.Type)
}

func TestDisconnectTransfersHost(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "lobby-3", "alice")
	bob := srv.dial(t, "lobby-3", "bob")

	send(t, alice, `{"type":"JOIN","payload":{"name":"Alice"}}`)
	send(t, bob, `{"type":"JOIN","payload":{"name":"Bob"}}`)
	readState(t, bob, hasPlayers(2))

	require.NoError(t, alice.Close())

	state := readState(t, bob, func(s *models.RoomState) bool {
		i := s.PlayerIndex("alice")
		return i >= 0 && !s.Players[i].IsConnected
	})
	host := state.Host()
	require.GreaterOrEqual(t, host, 0)
	assert.Equal(t, "bob", state.Players[host].ID)
}

func TestKickClosesTargetConnection(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "lobby-4", "alice")
	bob := srv.dial(t, "lobby-4", "bob")

	send(t, alice, `{"type":"JOIN","payload":{"name":"Alice"}}`)
	send(t, bob, `{"type":"JOIN","payload":{"name":"Bob"}}`)
	readState(t, alice, hasPlayers(2))

	send(t, alice, `{"type":"KICK_PLAYER","payload":{"targetId":"bob"}}`)
	readState(t, alice, hasPlayers(1))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := bob.ReadMessage()
		if err != nil {
			assert.False(t, websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived),
				"kicked connection should be closed by the server, got %v", err)
			break
		}
	}
}

func TestStateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.dial(t, "lobby-5", "alice")
	send(t, alice, `{"type":"JOIN","payload":{"name":"Alice"}}`)
	readState(t, alice, hasPlayers(1))

	resp, err := http.Get(srv.URL + "/rooms/lobby-5/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state models.RoomState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "lobby-5", state.RoomID)
	require.Len(t, state.Players, 1)
	assert.True(t, state.Players[0].IsConnected)
}

func TestStateEndpointUnknownRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/rooms/never-used/state")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, srv.service.hub.ActiveRooms())
}

func TestInvalidRoomIDIsRejected(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/rooms/bad.room/state", "/rooms/bad.room/ws", "/rooms/" + strings.Repeat("x", 65) + "/state"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestStatsAndHealth(t *testing.T) {
	srv := newTestServer(t)
	srv.dial(t, "lobby-6", "alice")
	srv.dial(t, "lobby-6", "bob")

	resp, err := http.Get(srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats struct {
		TotalConnections int            `json:"total_connections"`
		ActiveRooms      int            `json:"active_rooms"`
		RoomConnections  map[string]int `json:"room_connections"`
		RunningRooms     int            `json:"running_rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, 2, stats.RoomConnections["lobby-6"])
	assert.Equal(t, 1, stats.RunningRooms)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestValidRoomID(t *testing.T) {
	assert.True(t, ValidRoomID("room_1-A"))
	assert.False(t, ValidRoomID(""))
	assert.False(t, ValidRoomID("room 1"))
	assert.False(t, ValidRoomID("room.1"))
	assert.False(t, ValidRoomID(strings.Repeat("a", 65)))
}

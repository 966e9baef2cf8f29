package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/basta/go/internal/events"
	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
)

var epoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu         sync.Mutex
	broadcasts [][]byte
	sent       map[string][][]byte
	dropped    []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][][]byte)}
}

func (f *fakeTransport) Broadcast(_ string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakeTransport) Send(_ string, playerID string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[playerID] = append(f.sent[playerID], msg)
}

func (f *fakeTransport) Drop(_ string, playerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, playerID)
}

func (f *fakeTransport) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func (f *fakeTransport) sentTo(playerID string) []decoded {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]decoded, 0, len(f.sent[playerID]))
	for _, raw := range f.sent[playerID] {
		out = append(out, decode(raw))
	}
	return out
}

type decoded struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func decode(raw []byte) decoded {
	var d decoded
	_ = json.Unmarshal(raw, &d)
	return d
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	// failures is the number of upcoming publishes that fail
	failures int
	attempts int
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("nats unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	args := m.Called(ctx, roomID)
	state, _ := args.Get(0).(*models.RoomState)
	return state, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, roomID string, state *models.RoomState) error {
	args := m.Called(ctx, roomID, state)
	return args.Error(0)
}

func (m *mockStore) Close() error { return nil }

type harness struct {
	actor     *Actor
	clock     *clockwork.FakeClock
	transport *fakeTransport
	store     roomstore.Store
	publisher *recordingPublisher
	ctx       context.Context
}

func gameConfig() models.RoomConfig {
	return models.RoomConfig{
		TotalRounds:     2,
		RoundDuration:   60,
		ReviewDuration:  30,
		ResultsDuration: 10,
		Categories:      []string{"Animal", "Color"},
	}
}

func startActor(t *testing.T, store roomstore.Store, tweaks ...func(*Options)) *harness {
	t.Helper()
	if store == nil {
		store = roomstore.NewMemory()
	}
	h := &harness{
		clock:     clockwork.NewFakeClockAt(epoch),
		transport: newFakeTransport(),
		store:     store,
		publisher: &recordingPublisher{},
	}
	opts := Options{
		Store:     store,
		Transport: h.transport,
		Publisher: h.publisher,
		Clock:     h.clock,
		Rand:      rand.New(rand.NewPCG(3, 5)),
		Game:      gameConfig(),
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	h.actor = New("room-1", opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	go h.actor.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.actor.Done()
	})
	return h
}

func (h *harness) send(t *testing.T, playerID, msg string) error {
	t.Helper()
	return h.actor.Deliver(h.ctx, playerID, []byte(msg))
}

func (h *harness) mustSend(t *testing.T, playerID, msg string) {
	t.Helper()
	require.NoError(t, h.send(t, playerID, msg))
}

func (h *harness) state(t *testing.T) *models.RoomState {
	t.Helper()
	s, err := h.actor.Snapshot(h.ctx)
	require.NoError(t, err)
	return s
}

func (h *harness) waitForStatus(t *testing.T, status models.RoomStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := h.actor.Snapshot(h.ctx)
		return err == nil && s.Status == status
	}, 2*time.Second, 5*time.Millisecond, "room never reached %s", status)
}

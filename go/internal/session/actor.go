// Package session runs one actor per room. The actor is the only owner of the
// room's engine: player messages, disconnects and timer fires are queued into
// its mailbox and applied one at a time. Each accepted change is persisted,
// the alarm is re-armed, and only then is the new state broadcast.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/engine"
	"github.com/mcdev12/basta/go/internal/events"
	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
)

const (
	defaultMailboxSize = 256
	welcomeMessage     = "connected to room %s"
	kickedMessage      = "you were removed from the room"
)

// ErrStopped is returned by calls made after the actor has shut down.
var ErrStopped = errors.New("room actor stopped")

// Options configures an Actor. Store and Transport are required.
// PersistMaxRetries and PersistRetryDelay bound the retries of both store
// writes and event publishes.
type Options struct {
	Store     roomstore.Store
	Transport Transport
	Publisher events.Publisher
	Clock     clockwork.Clock
	Rand      *rand.Rand
	Game      models.RoomConfig

	PersistMaxRetries int
	PersistRetryDelay time.Duration
	MailboxSize       int
}

type requestKind int

const (
	requestConnect requestKind = iota
	requestMessage
	requestDisconnect
	requestSnapshot
	requestAlarm
)

type request struct {
	kind     requestKind
	playerID string
	raw      []byte
	gen      uint64
	reply    chan reply
}

type reply struct {
	state *models.RoomState
	err   error
}

// Actor serializes every operation against one room.
type Actor struct {
	roomID    string
	engine    *engine.Engine
	store     roomstore.Store
	transport Transport
	publisher events.Publisher
	clock     clockwork.Clock

	persistMaxRetries int
	persistRetryDelay time.Duration

	mailbox chan request
	done    chan struct{}
	alarm   *alarm
}

// New builds an actor for roomID. Call Run to start it.
func New(roomID string, opts Options) *Actor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}

	engineOpts := []engine.Option{engine.WithClock(opts.Clock)}
	if opts.Rand != nil {
		engineOpts = append(engineOpts, engine.WithRand(opts.Rand))
	}

	a := &Actor{
		roomID:            roomID,
		engine:            engine.New(roomID, opts.Game, engineOpts...),
		store:             opts.Store,
		transport:         opts.Transport,
		publisher:         opts.Publisher,
		clock:             opts.Clock,
		persistMaxRetries: opts.PersistMaxRetries,
		persistRetryDelay: opts.PersistRetryDelay,
		mailbox:           make(chan request, opts.MailboxSize),
		done:              make(chan struct{}),
	}
	a.alarm = newAlarm(opts.Clock, a.enqueueAlarm)
	return a
}

// Done is closed once Run has returned.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Run hydrates the room and then processes the mailbox until ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	defer a.alarm.cancel()

	a.hydrate(ctx)
	a.rearm(a.engine.State())

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("room_id", a.roomID).Msg("room actor shutting down")
			return
		case req := <-a.mailbox:
			a.handle(ctx, req)
		}
	}
}

// Connect greets a newly opened connection with a SYSTEM message followed by
// the current state. It does not add the player; that happens on JOIN.
func (a *Actor) Connect(ctx context.Context, playerID string) error {
	_, err := a.call(ctx, request{kind: requestConnect, playerID: playerID})
	return err
}

// Deliver applies one raw client message. A rejected action is reported to
// the sender as an ERROR and also returned here.
func (a *Actor) Deliver(ctx context.Context, playerID string, raw []byte) error {
	_, err := a.call(ctx, request{kind: requestMessage, playerID: playerID, raw: raw})
	return err
}

// Disconnect marks the player as gone.
func (a *Actor) Disconnect(ctx context.Context, playerID string) error {
	_, err := a.call(ctx, request{kind: requestDisconnect, playerID: playerID})
	return err
}

// Snapshot returns the current state. The result must not be modified.
func (a *Actor) Snapshot(ctx context.Context) (*models.RoomState, error) {
	return a.call(ctx, request{kind: requestSnapshot})
}

func (a *Actor) call(ctx context.Context, req request) (*models.RoomState, error) {
	req.reply = make(chan reply, 1)
	select {
	case a.mailbox <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, ErrStopped
	}
	select {
	case r := <-req.reply:
		return r.state, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, ErrStopped
	}
}

func (a *Actor) enqueueAlarm(gen uint64) {
	select {
	case a.mailbox <- request{kind: requestAlarm, gen: gen}:
	case <-a.done:
	}
}

func (a *Actor) handle(ctx context.Context, req request) {
	var r reply
	switch req.kind {
	case requestConnect:
		a.transport.Send(a.roomID, req.playerID, encodeSystem(fmt.Sprintf(welcomeMessage, a.roomID)))
		a.sendState(req.playerID, a.engine.State())
	case requestMessage:
		r.err = a.handleMessage(ctx, req.playerID, req.raw)
	case requestDisconnect:
		r.err = a.handleDisconnect(ctx, req.playerID)
	case requestSnapshot:
		r.state = a.engine.State()
	case requestAlarm:
		a.handleAlarm(ctx, req.gen)
	}
	if req.reply != nil {
		req.reply <- r
	}
}

func (a *Actor) handleMessage(ctx context.Context, playerID string, raw []byte) error {
	action, err := DecodeAction(raw)
	if err != nil {
		a.reject(playerID, err)
		return err
	}

	prev := a.engine.State()
	next, err := a.engine.Apply(playerID, action)
	if err != nil {
		a.reject(playerID, err)
		return err
	}
	if next == nil {
		return nil
	}
	a.commit(ctx, prev, next)

	if kick, ok := action.(engine.KickPlayer); ok {
		a.transport.Send(a.roomID, kick.TargetID, encodeSystem(kickedMessage))
		a.transport.Drop(a.roomID, kick.TargetID)
	}
	return nil
}

func (a *Actor) handleDisconnect(ctx context.Context, playerID string) error {
	prev := a.engine.State()
	next, err := a.engine.PlayerDisconnected(playerID)
	if errors.Is(err, engine.ErrUnknownPlayer) {
		// connection closed before the player ever joined
		return nil
	}
	if err != nil {
		return err
	}
	if next != nil {
		a.commit(ctx, prev, next)
	}
	return nil
}

func (a *Actor) handleAlarm(ctx context.Context, gen uint64) {
	if !a.alarm.current(gen) {
		log.Debug().Str("room_id", a.roomID).Uint64("gen", gen).Msg("ignoring stale alarm")
		return
	}
	log.Debug().Str("room_id", a.roomID).Uint64("gen", gen).Msg("alarm fired")

	prev := a.engine.State()
	next := a.engine.CheckTimeouts()
	if next == nil {
		a.rearm(prev)
		return
	}
	a.commit(ctx, prev, next)
}

// commit runs the side effects of an accepted change, in order:
// persist, re-arm the alarm, broadcast, publish events.
func (a *Actor) commit(ctx context.Context, prev, next *models.RoomState) {
	if err := a.persistWithRetry(ctx, next); err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to persist room state")
	}
	a.rearm(next)

	if prev.Status != next.Status {
		log.Info().
			Str("room_id", a.roomID).
			Str("from", string(prev.Status)).
			Str("to", string(next.Status)).
			Int("rounds_played", next.RoundsPlayed).
			Msg("room phase changed")
	}

	msg, err := encodeState(next)
	if err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to encode room state")
	} else {
		a.transport.Broadcast(a.roomID, msg)
	}

	a.publish(ctx, prev, next)
}

func (a *Actor) rearm(state *models.RoomState) {
	deadline, ok := engine.NextDeadline(state)
	if !ok {
		a.alarm.cancel()
		return
	}
	a.alarm.arm(deadline)
	log.Debug().Str("room_id", a.roomID).Time("deadline", deadline).Msg("alarm armed")
}

func (a *Actor) publish(ctx context.Context, prev, next *models.RoomState) {
	evs, err := events.Derive(prev, next, a.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to build room events")
		return
	}
	for _, ev := range evs {
		err := a.withRetry(ctx, "publish room event", func() error {
			return a.publisher.Publish(ctx, ev)
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("room_id", a.roomID).
				Str("event_type", ev.Type).
				Msg("failed to publish room event")
		}
	}
}

// persistWithRetry writes the snapshot, retrying with a linearly growing delay.
func (a *Actor) persistWithRetry(ctx context.Context, state *models.RoomState) error {
	// a write already underway finishes even if the room is shutting down
	putCtx := context.WithoutCancel(ctx)
	return a.withRetry(ctx, "persist room state", func() error {
		return a.store.Put(putCtx, a.roomID, state)
	})
}

// withRetry runs op up to persistMaxRetries+1 times, waiting
// persistRetryDelay*attempt between tries.
func (a *Actor) withRetry(ctx context.Context, what string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= a.persistMaxRetries; attempt++ {
		if attempt > 0 {
			delay := a.persistRetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-a.clock.After(delay):
			}
		}

		if err := op(); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("room_id", a.roomID).
				Str("operation", what).
				Msg("operation failed, retrying")
			continue
		}
		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("room_id", a.roomID).
				Str("operation", what).
				Msg("operation succeeded after retry")
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, a.persistMaxRetries+1, lastErr)
}

func (a *Actor) hydrate(ctx context.Context) {
	snapshot, err := a.store.Get(ctx, a.roomID)
	switch {
	case errors.Is(err, roomstore.ErrNotFound):
		log.Debug().Str("room_id", a.roomID).Msg("no stored state, starting fresh")
		return
	case err != nil:
		log.Warn().Err(err).Str("room_id", a.roomID).Msg("could not load stored state, starting fresh")
		return
	}
	if err := a.engine.Load(snapshot); err != nil {
		log.Warn().Err(err).Str("room_id", a.roomID).Msg("stored state cannot be resumed, starting fresh")
		return
	}
	state := a.engine.MarkAllDisconnected()
	log.Info().
		Str("room_id", a.roomID).
		Str("status", string(state.Status)).
		Int("players", len(state.Players)).
		Msg("room hydrated from store")
}

func (a *Actor) reject(playerID string, err error) {
	log.Debug().Err(err).Str("room_id", a.roomID).Str("player_id", playerID).Msg("action rejected")
	a.transport.Send(a.roomID, playerID, encodeError(err))
}

func (a *Actor) sendState(playerID string, state *models.RoomState) {
	msg, err := encodeState(state)
	if err != nil {
		log.Error().Err(err).Str("room_id", a.roomID).Msg("failed to encode room state")
		return
	}
	a.transport.Send(a.roomID, playerID, msg)
}

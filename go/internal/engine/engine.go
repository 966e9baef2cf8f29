// Package engine implements the room state machine: lobby, playing, review
// and results, plus the player actions that drive it.
//
// The Engine is not safe for concurrent use. Its owner (the session actor)
// serializes every call. Each accepted action produces a new snapshot; a
// snapshot returned to the caller is never mutated afterwards.
package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/scoring"
	"github.com/mcdev12/basta/go/internal/textnorm"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const defaultPlayerName = "Jugador"

// Engine owns one RoomState and applies actions to it.
type Engine struct {
	state *models.RoomState
	clock clockwork.Clock
	intn  func(n int) int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRand sets the source used to draw round letters.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.intn = r.IntN }
}

// New creates an engine holding a fresh LOBBY state.
func New(roomID string, cfg models.RoomConfig, opts ...Option) *Engine {
	e := &Engine{
		state: models.NewRoomState(roomID, cfg),
		clock: clockwork.NewRealClock(),
		intn:  rand.IntN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current snapshot. Callers must treat it as read-only.
func (e *Engine) State() *models.RoomState {
	return e.state
}

// Load replaces the current state with a persisted snapshot. The room id of
// the engine always wins over the one stored in the snapshot. A snapshot that
// fails ValidateSnapshot is refused and the current state is kept.
func (e *Engine) Load(snapshot *models.RoomState) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return err
	}
	next := snapshot.Clone()
	next.RoomID = e.state.RoomID
	if next.Answers == nil {
		next.Answers = models.Answers{}
	}
	if next.Votes == nil {
		next.Votes = models.Votes{}
	}
	if next.Players == nil {
		next.Players = []models.Player{}
	}
	if next.Confirmed == nil {
		next.Confirmed = []string{}
	}
	if len(next.Categories) == 0 {
		next.Categories = slices.Clone(next.Config.Categories)
	}
	e.state = next
	return nil
}

// MarkAllDisconnected flags every player as disconnected and clears the host
// without purging anyone. Used after hydration, when no socket survived the restart.
func (e *Engine) MarkAllDisconnected() *models.RoomState {
	next := e.state.Clone()
	for i := range next.Players {
		next.Players[i].IsConnected = false
		next.Players[i].IsHost = false
	}
	return e.commit(next)
}

// Apply dispatches an action issued by playerID. A nil state with a nil
// error means the action was accepted but changed nothing.
func (e *Engine) Apply(playerID string, action Action) (*models.RoomState, error) {
	switch a := action.(type) {
	case Join:
		return e.Join(playerID, a.Name, a.Avatar), nil
	case StartGame:
		return e.StartGame(playerID)
	case SubmitAnswers:
		return e.SubmitAnswers(playerID, a.Answers)
	case StopRound:
		return e.StopRound(playerID, a.Answers)
	case ToggleVote:
		return e.ToggleVote(playerID, a.TargetID, a.Category)
	case ConfirmVotes:
		return e.ConfirmVotes(playerID)
	case UpdateConfig:
		return e.UpdateConfig(playerID, a.Patch)
	case KickPlayer:
		return e.KickPlayer(playerID, a.TargetID)
	case ResetGame:
		return e.Reset(playerID)
	case Heartbeat:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported action %T", ErrMalformedMessage, action)
	}
}

// Join adds a player or reconnects a known one. It never changes the status.
func (e *Engine) Join(id, name, avatar string) *models.RoomState {
	next := e.state.Clone()
	name = strings.TrimSpace(name)
	noHost := next.Host() < 0

	if i := next.PlayerIndex(id); i >= 0 {
		p := &next.Players[i]
		if name != "" {
			p.Name = name
		}
		if avatar != "" {
			p.Avatar = avatar
		}
		p.IsConnected = true
		if noHost {
			assignHost(next, i)
		}
		return e.commit(next)
	}

	if name == "" {
		name = defaultPlayerName
	}
	next.Players = append(next.Players, models.Player{
		ID:          id,
		Name:        name,
		Avatar:      avatar,
		IsConnected: true,
	})
	if noHost {
		assignHost(next, len(next.Players)-1)
	}
	return e.commit(next)
}

// StartGame begins a round. From RESULTS after the final round it starts a
// fresh game, resetting scores first.
func (e *Engine) StartGame(requesterID string) (*models.RoomState, error) {
	if err := e.requireHost(requesterID, "start game"); err != nil {
		return nil, err
	}
	s := e.state
	if s.Status != models.RoomStatusLobby && s.Status != models.RoomStatusResults {
		return nil, fmt.Errorf("start game in %s: %w", s.Status, ErrInvalidPhase)
	}

	next := s.Clone()
	if next.Status == models.RoomStatusResults && next.RoundsPlayed >= next.Config.TotalRounds {
		for i := range next.Players {
			next.Players[i].Score = 0
		}
		next.RoundsPlayed = 0
	}
	e.startRound(next)
	return e.commit(next), nil
}

// SubmitAnswers merges a partial answer map for the player (last write wins
// per category). It is safe to call repeatedly, e.g. from client autosave.
func (e *Engine) SubmitAnswers(playerID string, answers map[string]string) (*models.RoomState, error) {
	if err := e.requirePlaying(playerID, "submit answers"); err != nil {
		return nil, err
	}
	next := e.state.Clone()
	if !mergeAnswers(next, playerID, answers) {
		return nil, nil
	}
	return e.commit(next), nil
}

// StopRound merges the caller's final answers and ends the round for everyone.
func (e *Engine) StopRound(playerID string, answers map[string]string) (*models.RoomState, error) {
	if err := e.requirePlaying(playerID, "stop round"); err != nil {
		return nil, err
	}
	next := e.state.Clone()
	mergeAnswers(next, playerID, answers)
	e.toReview(next, playerID)
	return e.commit(next), nil
}

// ToggleVote adds or removes voterID's challenge against target's answer.
func (e *Engine) ToggleVote(voterID, targetID, category string) (*models.RoomState, error) {
	s := e.state
	if s.Status != models.RoomStatusReview {
		return nil, fmt.Errorf("vote in %s: %w", s.Status, ErrInvalidPhase)
	}
	if !s.HasPlayer(voterID) {
		return nil, fmt.Errorf("vote: voter %q: %w", voterID, ErrUnknownPlayer)
	}
	if voterID == targetID {
		return nil, ErrSelfVote
	}
	if !s.HasPlayer(targetID) {
		return nil, fmt.Errorf("vote: target %q: %w", targetID, ErrUnknownPlayer)
	}
	if !slices.Contains(s.Categories, category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrMalformedMessage, category)
	}

	next := s.Clone()
	byCat := next.Votes[targetID]
	if byCat == nil {
		byCat = map[string][]string{}
		next.Votes[targetID] = byCat
	}
	voters := byCat[category]
	if i := slices.Index(voters, voterID); i >= 0 {
		voters = slices.Delete(voters, i, i+1)
	} else {
		voters = append(voters, voterID)
	}
	byCat[category] = voters
	return e.commit(next), nil
}

// ConfirmVotes records that the player is done voting. It is advisory only:
// the review phase always ends on its deadline.
func (e *Engine) ConfirmVotes(playerID string) (*models.RoomState, error) {
	s := e.state
	if s.Status != models.RoomStatusReview {
		return nil, fmt.Errorf("confirm votes in %s: %w", s.Status, ErrInvalidPhase)
	}
	if !s.HasPlayer(playerID) {
		return nil, fmt.Errorf("confirm votes: %q: %w", playerID, ErrUnknownPlayer)
	}
	if slices.Contains(s.Confirmed, playerID) {
		return nil, nil
	}
	next := s.Clone()
	next.Confirmed = append(next.Confirmed, playerID)
	return e.commit(next), nil
}

// CheckTimeouts advances the phase when its deadline has passed. It returns
// nil when nothing was due, which makes stale timer fires harmless.
func (e *Engine) CheckTimeouts() *models.RoomState {
	s := e.state
	deadline, ok := NextDeadline(s)
	if !ok || e.clock.Now().Before(deadline) {
		return nil
	}

	next := s.Clone()
	switch s.Status {
	case models.RoomStatusPlaying:
		e.toReview(next, "")
	case models.RoomStatusReview:
		e.resolveRound(next)
	case models.RoomStatusResults:
		e.startRound(next)
	default:
		return nil
	}
	return e.commit(next)
}

// UpdateConfig merges a partial config. Only the host may do it, and only in the lobby.
func (e *Engine) UpdateConfig(requesterID string, patch models.ConfigPatch) (*models.RoomState, error) {
	if err := e.requireHost(requesterID, "update config"); err != nil {
		return nil, err
	}
	if e.state.Status != models.RoomStatusLobby {
		return nil, fmt.Errorf("update config in %s: %w", e.state.Status, ErrInvalidPhase)
	}
	cfg, err := mergeConfig(e.state.Config, patch)
	if err != nil {
		return nil, err
	}
	next := e.state.Clone()
	next.Config = cfg
	next.Categories = slices.Clone(cfg.Categories)
	return e.commit(next), nil
}

// KickPlayer removes target from the room. Closing the target's connection
// is left to the caller.
func (e *Engine) KickPlayer(requesterID, targetID string) (*models.RoomState, error) {
	if err := e.requireHost(requesterID, "kick player"); err != nil {
		return nil, err
	}
	if requesterID == targetID {
		return nil, fmt.Errorf("kick player: cannot kick yourself: %w", ErrInvalidTarget)
	}
	if !e.state.HasPlayer(targetID) {
		return nil, fmt.Errorf("kick player %q: %w", targetID, ErrUnknownPlayer)
	}
	next := e.state.Clone()
	removePlayer(next, targetID)
	return e.commit(next), nil
}

// PlayerDisconnected soft-removes a player, keeping their record for a later
// reconnect. Host moves to the earliest-joined connected player. When nobody
// is left connected the room is purged back to an empty lobby.
func (e *Engine) PlayerDisconnected(id string) (*models.RoomState, error) {
	i := e.state.PlayerIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("disconnect %q: %w", id, ErrUnknownPlayer)
	}
	if !e.state.Players[i].IsConnected {
		return nil, nil
	}

	next := e.state.Clone()
	p := &next.Players[i]
	p.IsConnected = false
	wasHost := p.IsHost
	p.IsHost = false

	if next.ConnectedCount() == 0 {
		next.Players = []models.Player{}
		clearGame(next)
		return e.commit(next), nil
	}
	if wasHost {
		assignHost(next, firstConnected(next))
	}
	return e.commit(next), nil
}

// Reset returns the room to the lobby, clearing scores and round data.
// Allowed for the host, or for anyone when no connected host exists.
func (e *Engine) Reset(requesterID string) (*models.RoomState, error) {
	if !e.state.HasPlayer(requesterID) {
		return nil, fmt.Errorf("reset: %q: %w", requesterID, ErrUnknownPlayer)
	}
	if h := e.state.Host(); h >= 0 && e.state.Players[h].ID != requesterID {
		return nil, fmt.Errorf("reset: %w", ErrUnauthorized)
	}
	next := e.state.Clone()
	clearGame(next)
	return e.commit(next), nil
}

func (e *Engine) commit(next *models.RoomState) *models.RoomState {
	e.state = next
	return next
}

func (e *Engine) requireHost(requesterID, op string) error {
	i := e.state.PlayerIndex(requesterID)
	if i < 0 {
		return fmt.Errorf("%s: %q: %w", op, requesterID, ErrUnknownPlayer)
	}
	p := e.state.Players[i]
	if !p.IsHost || !p.IsConnected {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return nil
}

func (e *Engine) requirePlaying(playerID, op string) error {
	if e.state.Status != models.RoomStatusPlaying {
		return fmt.Errorf("%s in %s: %w", op, e.state.Status, ErrInvalidPhase)
	}
	if !e.state.HasPlayer(playerID) {
		return fmt.Errorf("%s: %q: %w", op, playerID, ErrUnknownPlayer)
	}
	return nil
}

func (e *Engine) nowMillis() int64 {
	return e.clock.Now().UnixMilli()
}

func (e *Engine) deadline(seconds int) *int64 {
	at := e.nowMillis() + int64(seconds)*1000
	return &at
}

func (e *Engine) startRound(s *models.RoomState) {
	s.Status = models.RoomStatusPlaying
	s.CurrentLetter = string(alphabet[e.intn(len(alphabet))])
	s.Answers = models.Answers{}
	s.Votes = models.Votes{}
	s.Confirmed = []string{}
	s.Results = nil
	s.StoppedBy = ""
	s.Timers = models.Timers{RoundEndsAt: e.deadline(s.Config.RoundDuration)}
}

func (e *Engine) toReview(s *models.RoomState, stoppedBy string) {
	s.Status = models.RoomStatusReview
	s.StoppedBy = stoppedBy
	s.Confirmed = []string{}
	s.Timers = models.Timers{VotingEndsAt: e.deadline(s.Config.ReviewDuration)}
}

func (e *Engine) resolveRound(s *models.RoomState) {
	results := scoring.Classify(scoring.Input{
		Players:      s.Players,
		Categories:   s.Categories,
		Answers:      s.Answers,
		Votes:        s.Votes,
		Letter:       s.CurrentLetter,
		StrictLetter: s.Config.StrictLetter,
	})
	for i := range s.Players {
		s.Players[i].Score += scoring.RoundTotal(results[s.Players[i].ID])
	}
	s.Results = results
	s.RoundsPlayed++
	s.Status = models.RoomStatusResults
	s.Timers = models.Timers{ResultsEndsAt: e.deadline(s.Config.ResultsDuration)}
}

func clearGame(s *models.RoomState) {
	for i := range s.Players {
		s.Players[i].Score = 0
	}
	s.Status = models.RoomStatusLobby
	s.CurrentLetter = ""
	s.Answers = models.Answers{}
	s.Votes = models.Votes{}
	s.Confirmed = []string{}
	s.Results = nil
	s.RoundsPlayed = 0
	s.StoppedBy = ""
	s.Timers = models.Timers{}
}

func mergeAnswers(s *models.RoomState, playerID string, answers map[string]string) bool {
	current := s.Answers[playerID]
	if current == nil {
		current = map[string]string{}
		s.Answers[playerID] = current
	}
	changed := false
	for category, answer := range answers {
		if !slices.Contains(s.Categories, category) {
			continue
		}
		if prev, ok := current[category]; ok && prev == answer {
			continue
		}
		current[category] = answer
		changed = true
	}
	return changed
}

func removePlayer(s *models.RoomState, id string) {
	s.Players = slices.DeleteFunc(s.Players, func(p models.Player) bool { return p.ID == id })
	delete(s.Answers, id)
	delete(s.Votes, id)
	delete(s.Results, id)
	for _, byCat := range s.Votes {
		for category, voters := range byCat {
			byCat[category] = slices.DeleteFunc(voters, func(v string) bool { return v == id })
		}
	}
	s.Confirmed = slices.DeleteFunc(s.Confirmed, func(v string) bool { return v == id })
}

// assignHost makes the player at index i the only host. A negative index clears the host.
func assignHost(s *models.RoomState, i int) {
	for j := range s.Players {
		s.Players[j].IsHost = j == i
	}
}

func firstConnected(s *models.RoomState) int {
	return slices.IndexFunc(s.Players, func(p models.Player) bool { return p.IsConnected })
}

func mergeConfig(cfg models.RoomConfig, patch models.ConfigPatch) (models.RoomConfig, error) {
	if patch.IsEmpty() {
		return cfg, fmt.Errorf("%w: nothing to update", ErrInvalidConfig)
	}
	out := cfg.Clone()
	fields := []struct {
		name string
		val  *int
		dst  *int
	}{
		{"totalRounds", patch.TotalRounds, &out.TotalRounds},
		{"roundDuration", patch.RoundDuration, &out.RoundDuration},
		{"reviewDuration", patch.ReviewDuration, &out.ReviewDuration},
		{"resultsDuration", patch.ResultsDuration, &out.ResultsDuration},
	}
	for _, f := range fields {
		if f.val == nil {
			continue
		}
		if *f.val <= 0 {
			return cfg, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidConfig, f.name)
		}
		*f.dst = *f.val
	}

	if patch.Categories != nil {
		categories, err := cleanCategories(patch.Categories)
		if err != nil {
			return cfg, err
		}
		out.Categories = categories
	}
	if patch.StrictLetter != nil {
		out.StrictLetter = *patch.StrictLetter
	}
	return out, nil
}

func cleanCategories(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("%w: category names cannot be blank", ErrInvalidConfig)
		}
		key := textnorm.Key(c)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidConfig, c)
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

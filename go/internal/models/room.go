package models

import (
	"slices"
	"time"
)

// RoomStatus defines the phase a room is in.
type RoomStatus string

const (
	RoomStatusLobby   RoomStatus = "LOBBY"
	RoomStatusPlaying RoomStatus = "PLAYING"
	RoomStatusReview  RoomStatus = "REVIEW"
	RoomStatusResults RoomStatus = "RESULTS"
)

// Answers maps playerID -> category -> free text.
type Answers map[string]map[string]string

// Votes maps targetPlayerID -> category -> voter ids, kept in cast order.
type Votes map[string]map[string][]string

// Timers holds the absolute deadlines (epoch milliseconds) for the active phase.
// At most one is set and it always matches the room status.
type Timers struct {
	RoundEndsAt   *int64 `json:"roundEndsAt"`
	VotingEndsAt  *int64 `json:"votingEndsAt"`
	ResultsEndsAt *int64 `json:"resultsEndsAt"`
}

// AnswerStatus is the classification of a single answer at review resolution.
type AnswerStatus string

const (
	AnswerStatusEmpty     AnswerStatus = "EMPTY"
	AnswerStatusRejected  AnswerStatus = "REJECTED"
	AnswerStatusDuplicate AnswerStatus = "DUPLICATE"
	AnswerStatusValid     AnswerStatus = "VALID"
)

// AnswerResult is the scored outcome of one player's answer in one category.
type AnswerResult struct {
	Answer string       `json:"answer"`
	Status AnswerStatus `json:"status"`
	Points int          `json:"points"`
	Votes  int          `json:"votes"`
}

// RoundResults maps playerID -> category -> result for the last resolved round.
type RoundResults map[string]map[string]AnswerResult

// RoomState is the canonical state of one game room.
type RoomState struct {
	RoomID        string       `json:"roomId"`
	Status        RoomStatus   `json:"status"`
	Players       []Player     `json:"players"`
	CurrentLetter string       `json:"currentLetter,omitempty"`
	Categories    []string     `json:"categories"`
	Answers       Answers      `json:"answers"`
	Votes         Votes        `json:"votes"`
	Confirmed     []string     `json:"confirmed"`
	RoundsPlayed  int          `json:"roundsPlayed"`
	Config        RoomConfig   `json:"config"`
	Timers        Timers       `json:"timers"`
	StoppedBy     string       `json:"stoppedBy,omitempty"`
	Results       RoundResults `json:"results,omitempty"`
}

// NewRoomState returns a fresh LOBBY state for a room.
func NewRoomState(roomID string, cfg RoomConfig) *RoomState {
	return &RoomState{
		RoomID:     roomID,
		Status:     RoomStatusLobby,
		Players:    []Player{},
		Categories: slices.Clone(cfg.Categories),
		Answers:    Answers{},
		Votes:      Votes{},
		Confirmed:  []string{},
		Config:     cfg.Clone(),
	}
}

// PlayerIndex returns the index of the player with the given id, or -1.
func (s *RoomState) PlayerIndex(id string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

// HasPlayer reports whether id belongs to a player in the room.
func (s *RoomState) HasPlayer(id string) bool {
	return s.PlayerIndex(id) >= 0
}

// Host returns the index of the connected host, or -1 when there is none.
func (s *RoomState) Host() int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.IsHost && p.IsConnected })
}

// ConnectedCount returns how many players are currently connected.
func (s *RoomState) ConnectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// ActiveDeadline returns the deadline matching the current status, if any.
func (s *RoomState) ActiveDeadline() (time.Time, bool) {
	var ms *int64
	switch s.Status {
	case RoomStatusPlaying:
		ms = s.Timers.RoundEndsAt
	case RoomStatusReview:
		ms = s.Timers.VotingEndsAt
	case RoomStatusResults:
		ms = s.Timers.ResultsEndsAt
	}
	if ms == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*ms), true
}

// Clone returns a deep copy of the state. Snapshots handed out to other
// goroutines are never mutated, the engine always works on a clone.
func (s *RoomState) Clone() *RoomState {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = slices.Clone(s.Players)
	if out.Players == nil {
		out.Players = []Player{}
	}
	out.Categories = slices.Clone(s.Categories)
	out.Confirmed = slices.Clone(s.Confirmed)
	if out.Confirmed == nil {
		out.Confirmed = []string{}
	}
	out.Config = s.Config.Clone()

	out.Answers = make(Answers, len(s.Answers))
	for pid, byCat := range s.Answers {
		m := make(map[string]string, len(byCat))
		for c, a := range byCat {
			m[c] = a
		}
		out.Answers[pid] = m
	}

	out.Votes = make(Votes, len(s.Votes))
	for target, byCat := range s.Votes {
		m := make(map[string][]string, len(byCat))
		for c, voters := range byCat {
			m[c] = slices.Clone(voters)
		}
		out.Votes[target] = m
	}

	if s.Results != nil {
		out.Results = make(RoundResults, len(s.Results))
		for pid, byCat := range s.Results {
			m := make(map[string]AnswerResult, len(byCat))
			for c, r := range byCat {
				m[c] = r
			}
			out.Results[pid] = m
		}
	}

	out.Timers = Timers{
		RoundEndsAt:   cloneMillis(s.Timers.RoundEndsAt),
		VotingEndsAt:  cloneMillis(s.Timers.VotingEndsAt),
		ResultsEndsAt: cloneMillis(s.Timers.ResultsEndsAt),
	}
	return &out
}

func cloneMillis(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

package events

import "time"

// Event types emitted on room phase changes.
const (
	TypeRoundStarted  = "RoundStarted"
	TypeReviewStarted = "ReviewStarted"
	TypeRoundScored   = "RoundScored"
	TypeGameReset     = "GameReset"
	TypePlayerKicked  = "PlayerKicked"
)

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	Round       int       `json:"round"`
	Letter      string    `json:"letter"`
	RoundEndsAt time.Time `json:"round_ends_at"`
}

// ReviewStartedPayload is the payload for a ReviewStarted event.
// StoppedBy is empty when the round timer expired.
type ReviewStartedPayload struct {
	Round        int       `json:"round"`
	StoppedBy    string    `json:"stopped_by,omitempty"`
	VotingEndsAt time.Time `json:"voting_ends_at"`
}

// RoundScoredPayload is the payload for a RoundScored event
type RoundScoredPayload struct {
	Round       int            `json:"round"`
	TotalRounds int            `json:"total_rounds"`
	RoundPoints map[string]int `json:"round_points"`
	Scores      map[string]int `json:"scores"`
	GameOver    bool           `json:"game_over"`
}

// GameResetPayload is the payload for a GameReset event
type GameResetPayload struct {
	Purged bool `json:"purged"`
}

// PlayerKickedPayload is the payload for a PlayerKicked event
type PlayerKickedPayload struct {
	PlayerID string `json:"player_id"`
}

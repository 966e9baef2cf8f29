package engine

import "github.com/mcdev12/basta/go/internal/models"

// ActionType is the wire name of an inbound player action.
type ActionType string

const (
	ActionJoin          ActionType = "JOIN"
	ActionStartGame     ActionType = "START_GAME"
	ActionSubmitAnswers ActionType = "SUBMIT_ANSWERS"
	ActionStopRound     ActionType = "STOP_ROUND"
	ActionToggleVote    ActionType = "TOGGLE_VOTE"
	ActionConfirmVotes  ActionType = "CONFIRM_VOTES"
	ActionUpdateConfig  ActionType = "UPDATE_CONFIG"
	ActionKickPlayer    ActionType = "KICK_PLAYER"
	ActionResetGame     ActionType = "RESET_GAME"
	ActionHeartbeat     ActionType = "HEARTBEAT"
)

// Action is the closed set of things a player can ask the engine to do.
// Only types in this package implement it.
type Action interface {
	Type() ActionType
	sealed()
}

type Join struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type StartGame struct{}

type SubmitAnswers struct {
	Answers map[string]string `json:"answers"`
}

type StopRound struct {
	Answers map[string]string `json:"answers"`
}

type ToggleVote struct {
	TargetID string `json:"targetId"`
	Category string `json:"category"`
}

type ConfirmVotes struct{}

type UpdateConfig struct {
	Patch models.ConfigPatch
}

type KickPlayer struct {
	TargetID string `json:"targetId"`
}

type ResetGame struct{}

// Heartbeat keeps the connection alive and never changes state.
type Heartbeat struct{}

func (Join) Type() ActionType          { return ActionJoin }
func (StartGame) Type() ActionType     { return ActionStartGame }
func (SubmitAnswers) Type() ActionType { return ActionSubmitAnswers }
func (StopRound) Type() ActionType     { return ActionStopRound }
func (ToggleVote) Type() ActionType    { return ActionToggleVote }
func (ConfirmVotes) Type() ActionType  { return ActionConfirmVotes }
func (UpdateConfig) Type() ActionType  { return ActionUpdateConfig }
func (KickPlayer) Type() ActionType    { return ActionKickPlayer }
func (ResetGame) Type() ActionType     { return ActionResetGame }
func (Heartbeat) Type() ActionType     { return ActionHeartbeat }

func (Join) sealed()          {}
func (StartGame) sealed()     {}
func (SubmitAnswers) sealed() {}
func (StopRound) sealed()     {}
func (ToggleVote) sealed()    {}
func (ConfirmVotes) sealed()  {}
func (UpdateConfig) sealed()  {}
func (KickPlayer) sealed()    {}
func (ResetGame) sealed()     {}
func (Heartbeat) sealed()     {}

package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcdev12/basta/go/internal/engine"
	"github.com/mcdev12/basta/go/internal/models"
)

// Outbound message types.
const (
	TypeUpdateState = "UPDATE_STATE"
	TypeError       = "ERROR"
	TypeSystem      = "SYSTEM"
)

// inbound is the envelope every client message arrives in.
type inbound struct {
	Type    engine.ActionType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

// Outbound is the envelope for every server message.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Message string      `json:"message"`
	Code    engine.Code `json:"code"`
}

// DecodeAction parses a raw client message into an engine action.
func DecodeAction(raw []byte) (engine.Action, error) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMalformedMessage, err)
	}

	switch engine.ActionType(strings.ToUpper(string(env.Type))) {
	case engine.ActionJoin:
		var a engine.Join
		return a, decodePayload(env.Payload, &a, false)
	case engine.ActionStartGame:
		return engine.StartGame{}, nil
	case engine.ActionSubmitAnswers:
		var a engine.SubmitAnswers
		if err := decodePayload(env.Payload, &a, true); err != nil {
			return nil, err
		}
		if a.Answers == nil {
			return nil, fmt.Errorf("%w: answers are required", engine.ErrMalformedMessage)
		}
		return a, nil
	case engine.ActionStopRound:
		var a engine.StopRound
		return a, decodePayload(env.Payload, &a, false)
	case engine.ActionToggleVote:
		var a engine.ToggleVote
		if err := decodePayload(env.Payload, &a, true); err != nil {
			return nil, err
		}
		if a.TargetID == "" || a.Category == "" {
			return nil, fmt.Errorf("%w: targetId and category are required", engine.ErrMalformedMessage)
		}
		return a, nil
	case engine.ActionConfirmVotes:
		return engine.ConfirmVotes{}, nil
	case engine.ActionUpdateConfig:
		var patch models.ConfigPatch
		if err := decodePayload(env.Payload, &patch, true); err != nil {
			return nil, err
		}
		return engine.UpdateConfig{Patch: patch}, nil
	case engine.ActionKickPlayer:
		var a engine.KickPlayer
		if err := decodePayload(env.Payload, &a, true); err != nil {
			return nil, err
		}
		if a.TargetID == "" {
			return nil, fmt.Errorf("%w: targetId is required", engine.ErrMalformedMessage)
		}
		return a, nil
	case engine.ActionResetGame:
		return engine.ResetGame{}, nil
	case engine.ActionHeartbeat:
		return engine.Heartbeat{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", engine.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", engine.ErrMalformedMessage, env.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any, required bool) error {
	if len(raw) == 0 || string(raw) == "null" {
		if required {
			return fmt.Errorf("%w: payload is required", engine.ErrMalformedMessage)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrMalformedMessage, err)
	}
	return nil
}

func encodeState(state *models.RoomState) ([]byte, error) {
	return json.Marshal(Outbound{Type: TypeUpdateState, Payload: state})
}

func encodeError(err error) []byte {
	msg, _ := json.Marshal(Outbound{Type: TypeError, Payload: ErrorPayload{
		Message: err.Error(),
		Code:    engine.CodeOf(err),
	}})
	return msg
}

func encodeSystem(text string) []byte {
	msg, _ := json.Marshal(Outbound{Type: TypeSystem, Payload: text})
	return msg
}

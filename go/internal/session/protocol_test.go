package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/basta/go/internal/engine"
	"github.com/mcdev12/basta/go/internal/models"
)

func TestDecodeAction(t *testing.T) {
	rounds := 3
	testCases := []struct {
		name string
		raw  string
		want engine.Action
	}{
		{"join", `{"type":"JOIN","payload":{"name":"Ana","avatar":"🦊"}}`, engine.Join{Name: "Ana", Avatar: "🦊"}},
		{"join without payload", `{"type":"JOIN"}`, engine.Join{}},
		{"start", `{"type":"START_GAME","payload":{}}`, engine.StartGame{}},
		{"submit", `{"type":"SUBMIT_ANSWERS","payload":{"answers":{"Animal":"Gato"}}}`,
			engine.SubmitAnswers{Answers: map[string]string{"Animal": "Gato"}}},
		{"stop", `{"type":"STOP_ROUND","payload":{"answers":{"Color":"Gris"}}}`,
			engine.StopRound{Answers: map[string]string{"Color": "Gris"}}},
		{"vote", `{"type":"TOGGLE_VOTE","payload":{"targetId":"b","category":"Animal"}}`,
			engine.ToggleVote{TargetID: "b", Category: "Animal"}},
		{"confirm", `{"type":"CONFIRM_VOTES"}`, engine.ConfirmVotes{}},
		{"config", `{"type":"UPDATE_CONFIG","payload":{"totalRounds":3}}`,
			engine.UpdateConfig{Patch: patchRounds(&rounds)}},
		{"kick", `{"type":"KICK_PLAYER","payload":{"targetId":"b"}}`, engine.KickPlayer{TargetID: "b"}},
		{"reset", `{"type":"RESET_GAME"}`, engine.ResetGame{}},
		{"heartbeat lower case", `{"type":"heartbeat"}`, engine.Heartbeat{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeAction_Malformed(t *testing.T) {
	for _, raw := range []string{
		`nope`,
		`{}`,
		`{"type":"DANCE"}`,
		`{"type":"SUBMIT_ANSWERS"}`,
		`{"type":"SUBMIT_ANSWERS","payload":{"answers":"Gato"}}`,
		`{"type":"TOGGLE_VOTE","payload":{"targetId":"b"}}`,
		`{"type":"KICK_PLAYER","payload":{}}`,
		`{"type":"UPDATE_CONFIG"}`,
	} {
		_, err := DecodeAction([]byte(raw))
		assert.ErrorIs(t, err, engine.ErrMalformedMessage, raw)
	}
}

func TestEncodeError(t *testing.T) {
	var msg struct {
		Type    string       `json:"type"`
		Payload ErrorPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(encodeError(engine.ErrSelfVote), &msg))
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, engine.CodeSelfVote, msg.Payload.Code)

	require.NoError(t, json.Unmarshal(encodeError(errors.New("boom")), &msg))
	assert.Equal(t, engine.CodeInternal, msg.Payload.Code)
}

func patchRounds(n *int) models.ConfigPatch {
	return models.ConfigPatch{TotalRounds: n}
}

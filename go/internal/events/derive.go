package events

import (
	"time"

	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/scoring"
)

// Derive returns the events implied by a transition from prev to next.
// prev may be nil for the first snapshot of a room.
func Derive(prev, next *models.RoomState, at time.Time) ([]Event, error) {
	if next == nil {
		return nil, nil
	}
	prevStatus := models.RoomStatusLobby
	if prev != nil {
		prevStatus = prev.Status
	}

	var out []Event
	add := func(eventType string, payload any) error {
		ev, err := New(next.RoomID, eventType, at, payload)
		if err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	}

	var err error
	switch {
	case next.Status == models.RoomStatusPlaying && prevStatus != models.RoomStatusPlaying:
		err = add(TypeRoundStarted, RoundStartedPayload{
			Round:       next.RoundsPlayed + 1,
			Letter:      next.CurrentLetter,
			RoundEndsAt: millis(next.Timers.RoundEndsAt),
		})
	case next.Status == models.RoomStatusReview && prevStatus == models.RoomStatusPlaying:
		err = add(TypeReviewStarted, ReviewStartedPayload{
			Round:        next.RoundsPlayed + 1,
			StoppedBy:    next.StoppedBy,
			VotingEndsAt: millis(next.Timers.VotingEndsAt),
		})
	case next.Status == models.RoomStatusResults && prevStatus == models.RoomStatusReview:
		err = add(TypeRoundScored, roundScored(next))
	case next.Status == models.RoomStatusLobby && prevStatus != models.RoomStatusLobby:
		err = add(TypeGameReset, GameResetPayload{Purged: len(next.Players) == 0})
	}
	if err != nil {
		return nil, err
	}

	if prev != nil && len(next.Players) > 0 {
		for _, p := range prev.Players {
			if next.HasPlayer(p.ID) {
				continue
			}
			if err := add(TypePlayerKicked, PlayerKickedPayload{PlayerID: p.ID}); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func roundScored(s *models.RoomState) RoundScoredPayload {
	payload := RoundScoredPayload{
		Round:       s.RoundsPlayed,
		TotalRounds: s.Config.TotalRounds,
		RoundPoints: make(map[string]int, len(s.Players)),
		Scores:      make(map[string]int, len(s.Players)),
		GameOver:    s.RoundsPlayed >= s.Config.TotalRounds,
	}
	for _, p := range s.Players {
		payload.Scores[p.ID] = p.Score
		payload.RoundPoints[p.ID] = scoring.RoundTotal(s.Results[p.ID])
	}
	return payload
}

func millis(v *int64) time.Time {
	if v == nil {
		return time.Time{}
	}
	return time.UnixMilli(*v).UTC()
}

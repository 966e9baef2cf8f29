package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/basta/go/internal/models"
)

// ErrInvalidSnapshot is returned by Load when a stored state cannot be resumed.
var ErrInvalidSnapshot = errors.New("invalid room snapshot")

// ValidateSnapshot checks that a persisted state is one the engine could have
// produced: a known status, exactly the timer that status runs on, and a
// playable config.
func ValidateSnapshot(s *models.RoomState) error {
	if s == nil {
		return fmt.Errorf("%w: empty snapshot", ErrInvalidSnapshot)
	}

	var want *int64
	switch s.Status {
	case models.RoomStatusLobby:
	case models.RoomStatusPlaying:
		want = s.Timers.RoundEndsAt
	case models.RoomStatusReview:
		want = s.Timers.VotingEndsAt
	case models.RoomStatusResults:
		want = s.Timers.ResultsEndsAt
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSnapshot, s.Status)
	}

	set := 0
	for _, ts := range []*int64{s.Timers.RoundEndsAt, s.Timers.VotingEndsAt, s.Timers.ResultsEndsAt} {
		if ts != nil {
			set++
		}
	}
	switch {
	case s.Status == models.RoomStatusLobby && set != 0:
		return fmt.Errorf("%w: lobby with a running timer", ErrInvalidSnapshot)
	case s.Status != models.RoomStatusLobby && (want == nil || set != 1):
		return fmt.Errorf("%w: %s needs exactly its own timer", ErrInvalidSnapshot, s.Status)
	case s.Status != models.RoomStatusLobby && len([]rune(s.CurrentLetter)) != 1:
		return fmt.Errorf("%w: %s without a round letter", ErrInvalidSnapshot, s.Status)
	}

	c := s.Config
	if c.TotalRounds <= 0 || c.RoundDuration <= 0 || c.ReviewDuration <= 0 || c.ResultsDuration <= 0 {
		return fmt.Errorf("%w: rounds and durations must be greater than zero", ErrInvalidSnapshot)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidSnapshot)
	}
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("%w: blank category", ErrInvalidSnapshot)
		}
	}
	if s.RoundsPlayed < 0 || s.RoundsPlayed > c.TotalRounds {
		return fmt.Errorf("%w: %d rounds played of %d", ErrInvalidSnapshot, s.RoundsPlayed, c.TotalRounds)
	}
	return nil
}

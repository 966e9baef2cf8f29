package engine

import (
	"time"

	"github.com/mcdev12/basta/go/internal/models"
)

// NextDeadline returns when the room's next automatic transition is due.
// There is none in the lobby, or in RESULTS once the last round was played.
func NextDeadline(s *models.RoomState) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	if s.Status == models.RoomStatusResults && s.RoundsPlayed >= s.Config.TotalRounds {
		return time.Time{}, false
	}
	return s.ActiveDeadline()
}

package models

// Player represents a participant in a room. The ID is stable for the
// lifetime of the connection that created it.
type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}

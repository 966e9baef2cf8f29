package models

import "slices"

// RoomConfig holds the per-room game settings. Durations are in seconds.
type RoomConfig struct {
	TotalRounds     int      `json:"totalRounds" yaml:"total_rounds"`
	RoundDuration   int      `json:"roundDuration" yaml:"round_duration_sec"`
	ReviewDuration  int      `json:"reviewDuration" yaml:"review_duration_sec"`
	ResultsDuration int      `json:"resultsDuration" yaml:"results_duration_sec"`
	Categories      []string `json:"categories" yaml:"categories"`
	StrictLetter    bool     `json:"strictLetter" yaml:"strict_letter"`
}

// DefaultRoomConfig returns the settings used when nothing else is configured.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TotalRounds:     5,
		RoundDuration:   60,
		ReviewDuration:  30,
		ResultsDuration: 10,
		Categories:      []string{"Nombre", "Apellido", "Animal", "Color", "Fruta", "País", "Cosa"},
	}
}

// Clone returns a copy that shares no slices with c.
func (c RoomConfig) Clone() RoomConfig {
	c.Categories = slices.Clone(c.Categories)
	return c
}

// ConfigPatch is a partial config update; nil fields are left untouched.
type ConfigPatch struct {
	TotalRounds     *int     `json:"totalRounds,omitempty"`
	RoundDuration   *int     `json:"roundDuration,omitempty"`
	ReviewDuration  *int     `json:"reviewDuration,omitempty"`
	ResultsDuration *int     `json:"resultsDuration,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	StrictLetter    *bool    `json:"strictLetter,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p.TotalRounds == nil && p.RoundDuration == nil && p.ReviewDuration == nil &&
		p.ResultsDuration == nil && p.Categories == nil && p.StrictLetter == nil
}

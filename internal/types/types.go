package types

import (
	"time"
)

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TimerState is the computed timer view broadcast to clients.
// RemainingTime is milliseconds, matching what clients render.
type TimerState struct {
	Phase         string    `json:"phase"`
	StartedAt     time.Time `json:"started_at"`
	CycleCount    int       `json:"cycle_count"`
	RemainingTime int64     `json:"remaining_time"`
	Progress      float64   `json:"progress"`
}

type Participant struct {
	Id       string    `json:"id"`
	JoinedAt time.Time `json:"joined_at"`
}

type RoomInfo struct {
	Room
	ParticipantsCount int `json:"participants_count"`
}

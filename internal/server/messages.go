package server

import (
	"github.com/npezzotti/go-pomoroom/internal/timer"
	"github.com/npezzotti/go-pomoroom/internal/types"
)

const (
	MessageTypeTimerUpdate = "TIMER_UPDATE"
	MessageTypePresence    = "PRESENCE"
)

const (
	PresenceEventSync  = "sync"
	PresenceEventJoin  = "join"
	PresenceEventLeave = "leave"
)

// ServerMessage is the envelope written to websocket clients. Payload
// is a types.TimerState for TIMER_UPDATE and a []types.Participant
// for PRESENCE.
type ServerMessage struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	Payload any    `json:"payload"`
}

func TimerUpdateMessage(v timer.View) *ServerMessage {
	return &ServerMessage{
		Type: MessageTypeTimerUpdate,
		Payload: types.TimerState{
			Phase:         string(v.Phase),
			StartedAt:     v.StartedAt,
			CycleCount:    v.CycleCount,
			RemainingTime: v.Remaining.Milliseconds(),
			Progress:      v.Progress,
		},
	}
}

func PresenceMessage(event string, participants []types.Participant) *ServerMessage {
	return &ServerMessage{
		Type:    MessageTypePresence,
		Event:   event,
		Payload: participants,
	}
}

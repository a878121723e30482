package database

import "time"

type Room struct {
	Id         int
	ExternalId string
	Name       string
	CreatedAt  time.Time
}

type Timer struct {
	Id         int
	RoomId     int
	Phase      string
	StartedAt  time.Time
	CycleCount int
	UpdatedAt  time.Time
}

type CreateRoomParams struct {
	Name       string `json:"name"`
	ExternalId string `json:"external_id"`
}

package database

import (
	"context"
	"errors"
)

// ErrDuplicateRoomName is returned by CreateRoom when another room
// already holds the requested name. Callers treat it as losing the
// create race, not as a failure.
var ErrDuplicateRoomName = errors.New("room name already exists")

type PomoRepository interface {
	Ping(ctx context.Context) error
	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoomByName(ctx context.Context, name string) (Room, error)
	GetRoomByExternalId(ctx context.Context, externalId string) (Room, error)
	CreateTimer(ctx context.Context, timer Timer) (Timer, error)
	UpdateTimer(ctx context.Context, timer Timer) (Timer, error)
	GetLatestTimerByRoomId(ctx context.Context, roomId int) (Timer, error)
}

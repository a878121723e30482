package database

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code raised when an insert
// breaks a unique constraint.
const uniqueViolation = "23505"

func (db *PgPomoRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgPomoRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO rooms (name, external_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, name, external_id, created_at",
		params.Name,
		params.ExternalId,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.Name,
		&room.ExternalId,
		&room.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Room{}, ErrDuplicateRoomName
		}
		return Room{}, err
	}

	return room, nil
}

func (db *PgPomoRepository) GetRoomByName(ctx context.Context, name string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, external_id, created_at FROM rooms "+
			"WHERE name = $1 LIMIT 1",
		name,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.ExternalId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgPomoRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, external_id, created_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.ExternalId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgPomoRepository) CreateTimer(ctx context.Context, timer Timer) (Timer, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO timers (room_id, phase, started_at, cycle_count, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, room_id, phase, started_at, cycle_count, updated_at",
		timer.RoomId,
		timer.Phase,
		timer.StartedAt,
		timer.CycleCount,
		time.Now().UTC(),
	)

	var t Timer
	err := res.Scan(
		&t.Id,
		&t.RoomId,
		&t.Phase,
		&t.StartedAt,
		&t.CycleCount,
		&t.UpdatedAt,
	)

	return t, err
}

func (db *PgPomoRepository) UpdateTimer(ctx context.Context, timer Timer) (Timer, error) {
	res := db.conn.QueryRowContext(ctx,
		"UPDATE timers SET phase = $2, started_at = $3, cycle_count = $4, updated_at = $5 "+
			"WHERE id = $1 RETURNING id, room_id, phase, started_at, cycle_count, updated_at",
		timer.Id,
		timer.Phase,
		timer.StartedAt,
		timer.CycleCount,
		time.Now().UTC(),
	)

	var t Timer
	err := res.Scan(
		&t.Id,
		&t.RoomId,
		&t.Phase,
		&t.StartedAt,
		&t.CycleCount,
		&t.UpdatedAt,
	)

	return t, err
}

func (db *PgPomoRepository) GetLatestTimerByRoomId(ctx context.Context, roomId int) (Timer, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, room_id, phase, started_at, cycle_count, updated_at FROM timers "+
			"WHERE room_id = $1 ORDER BY updated_at DESC LIMIT 1",
		roomId,
	)

	var t Timer
	err := row.Scan(
		&t.Id,
		&t.RoomId,
		&t.Phase,
		&t.StartedAt,
		&t.CycleCount,
		&t.UpdatedAt,
	)

	return t, err
}

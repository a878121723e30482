// Package registry resolves room names to rooms, creating them on
// first use. Creation attempts for the same name are serialized
// in-process, and the rooms table's unique name constraint settles
// the race across processes.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/teris-io/shortid"

	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/timer"
	"github.com/npezzotti/go-pomoroom/internal/types"
)

const maxRoomNameLength = 20

// ValidationError reports a bad room name. Its message is safe to
// show to the caller verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Registry struct {
	log   *log.Logger
	db    database.PomoRepository
	clock clockwork.Clock

	namesLock sync.Mutex
	names     map[string]*nameLock
}

// nameLock serializes creation attempts for one name. refs counts the
// callers holding or waiting on it, so the entry can be dropped from
// the map once the last one releases instead of accumulating one lock
// per name ever requested.
type nameLock struct {
	sync.Mutex
	refs int
}

func NewRegistry(logger *log.Logger, db database.PomoRepository, clock clockwork.Clock) *Registry {
	return &Registry{
		log:   logger,
		db:    db,
		clock: clock,
		names: make(map[string]*nameLock),
	}
}

func (r *Registry) lockName(name string) *nameLock {
	r.namesLock.Lock()
	l, ok := r.names[name]
	if !ok {
		l = &nameLock{}
		r.names[name] = l
	}
	l.refs++
	r.namesLock.Unlock()

	l.Lock()
	return l
}

func (r *Registry) unlockName(name string, l *nameLock) {
	l.Unlock()

	r.namesLock.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.names, name)
	}
	r.namesLock.Unlock()
}

// JoinOrCreate returns the room named name, creating it if absent.
// The returned bool reports whether the room was newly created.
// Concurrent calls with the same name all resolve to a single room:
// the check and insert run under a per-name lock, and a duplicate-key
// rejection from the store is treated as "someone else just created
// it" and answered by re-reading the winner.
func (r *Registry) JoinOrCreate(ctx context.Context, name string) (types.Room, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Room{}, false, &ValidationError{Message: "room name is required"}
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return types.Room{}, false, &ValidationError{Message: "room name must be 20 characters or fewer"}
	}

	l := r.lockName(name)
	defer r.unlockName(name, l)

	room, err := r.db.GetRoomByName(ctx, name)
	if err == nil {
		return externalRoom(room), false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Room{}, false, fmt.Errorf("get room: %w", err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return types.Room{}, false, fmt.Errorf("generate room id: %w", err)
	}

	room, err = r.db.CreateRoom(ctx, database.CreateRoomParams{
		Name:       name,
		ExternalId: sid,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateRoomName) {
			r.log.Printf("lost create race for room %q, joining existing", name)
			existing, err := r.db.GetRoomByName(ctx, name)
			if err != nil {
				return types.Room{}, false, fmt.Errorf("get room after duplicate name: %w", err)
			}
			return externalRoom(existing), false, nil
		}
		return types.Room{}, false, fmt.Errorf("create room: %w", err)
	}

	initial := timer.Initial(r.clock.Now().UTC())
	if _, err := r.db.CreateTimer(ctx, database.Timer{
		RoomId:     room.Id,
		Phase:      string(initial.Phase),
		StartedAt:  initial.StartedAt,
		CycleCount: initial.CycleCount,
	}); err != nil {
		// a room without a timer is still usable: the room's driver
		// creates a default timer on first read
		r.log.Printf("create initial timer for room %q: %v", room.ExternalId, err)
	}

	return externalRoom(room), true, nil
}

func externalRoom(room database.Room) types.Room {
	return types.Room{
		Id:        room.ExternalId,
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
	}
}

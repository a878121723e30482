package server

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-pomoroom/internal/types"
)

// presenceTracker holds the live participant set of a room. It is
// mutated only by the room's goroutine, but counts and snapshots are
// read from other goroutines, hence the lock.
type presenceTracker struct {
	lock         sync.RWMutex
	participants map[string]time.Time
}

func newPresenceTracker() *presenceTracker {
	return &presenceTracker{
		participants: make(map[string]time.Time),
	}
}

// attach records a participant. It reports false if the participant
// was already attached.
func (p *presenceTracker) attach(id string, joinedAt time.Time) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.participants[id]; ok {
		return false
	}
	p.participants[id] = joinedAt
	return true
}

// detach removes a participant. It reports false if the participant
// was not attached.
func (p *presenceTracker) detach(id string) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, ok := p.participants[id]; !ok {
		return false
	}
	delete(p.participants, id)
	return true
}

func (p *presenceTracker) count() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return len(p.participants)
}

// snapshot returns all participants ordered by join time, ties broken
// by id so the order is stable.
func (p *presenceTracker) snapshot() []types.Participant {
	p.lock.RLock()
	defer p.lock.RUnlock()

	participants := make([]types.Participant, 0, len(p.participants))
	for id, joinedAt := range p.participants {
		participants = append(participants, types.Participant{Id: id, JoinedAt: joinedAt})
	}

	slices.SortFunc(participants, func(a, b types.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Id, b.Id)
	})

	return participants
}

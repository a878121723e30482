package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_presenceTracker_attachDetach(t *testing.T) {
	p := newPresenceTracker()
	now := time.Now().UTC()

	assert.True(t, p.attach("p1", now), "expected first attach to succeed")
	assert.False(t, p.attach("p1", now.Add(time.Second)), "expected repeat attach to be a no-op")
	assert.Equal(t, 1, p.count(), "expected repeat attach not to inflate the count")

	assert.True(t, p.attach("p2", now.Add(time.Second)))
	assert.Equal(t, 2, p.count())

	assert.True(t, p.detach("p1"))
	assert.False(t, p.detach("p1"), "expected detach of absent participant to be a no-op")
	assert.Equal(t, 1, p.count())

	assert.True(t, p.detach("p2"))
	assert.Equal(t, 0, p.count(), "expected count to return to zero")
}

func Test_presenceTracker_countNeverNegative(t *testing.T) {
	p := newPresenceTracker()

	assert.False(t, p.detach("ghost"))
	assert.Equal(t, 0, p.count())
}

func Test_presenceTracker_snapshotOrderedByJoinTime(t *testing.T) {
	p := newPresenceTracker()
	base := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

	// attach out of join-time order
	p.attach("p3", base.Add(2*time.Second))
	p.attach("p1", base)
	p.attach("p2", base.Add(time.Second))

	snapshot := p.snapshot()
	assert.Len(t, snapshot, 3)
	assert.Equal(t, "p1", snapshot[0].Id)
	assert.Equal(t, "p2", snapshot[1].Id)
	assert.Equal(t, "p3", snapshot[2].Id)
	assert.Equal(t, base, snapshot[0].JoinedAt)
}

func Test_presenceTracker_attachMatchesDetaches(t *testing.T) {
	p := newPresenceTracker()
	now := time.Now().UTC()

	var attaches, detaches int
	for i := range 10 {
		id := fmt.Sprintf("p%d", i)
		if p.attach(id, now.Add(time.Duration(i)*time.Second)) {
			attaches++
		}
	}
	for i := range 4 {
		if p.detach(fmt.Sprintf("p%d", i)) {
			detaches++
		}
	}

	assert.Equal(t, attaches-detaches, p.count(), "expected count to equal attaches minus matching detaches")
}

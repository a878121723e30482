package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/stats"
	"github.com/npezzotti/go-pomoroom/internal/timer"
)

const (
	// idleRoomTimeout is how long an empty room stays loaded before
	// it is unloaded. The persisted room and timer rows survive.
	idleRoomTimeout = 30 * time.Second
	dbTimeout       = 5 * time.Second
)

type exitReq struct {
	done chan struct{}
}

// Room is a loaded room. Its goroutine is the single writer of the
// room's timer state and the serialization point for joins, leaves
// and ticks, so two concurrent ticks can never double-transition.
type Room struct {
	id         int
	externalId string
	name       string
	ps         *PomoServer
	log        *log.Logger
	clock      clockwork.Clock

	joinChan  chan *Client
	leaveChan chan *Client
	clients   map[*Client]struct{}
	presence  *presenceTracker

	state      timer.State
	timerRowId int
	phaseTimer clockwork.Timer

	// killTimer unloads the room when it has been empty for a while
	killTimer *time.Timer
	exit      chan exitReq
}

func newRoom(ps *PomoServer, dbRoom database.Room) *Room {
	return &Room{
		id:         dbRoom.Id,
		externalId: dbRoom.ExternalId,
		name:       dbRoom.Name,
		ps:         ps,
		log:        ps.log,
		clock:      ps.clock,
		joinChan:   make(chan *Client, 256),
		leaveChan:  make(chan *Client, 256),
		clients:    make(map[*Client]struct{}),
		presence:   newPresenceTracker(),
		exit:       make(chan exitReq),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	if err := r.loadTimer(); err != nil {
		// unload rather than run on a state that shadows the persisted
		// schedule; replayed joins reload the room, retrying the read
		r.log.Printf("room %q: %v, unloading", r.externalId, err)
		select {
		case r.ps.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
		default:
		}
	}
	r.schedulePhaseTimer()

	for {
		select {
		case c := <-r.joinChan:
			r.handleJoin(c)
		case c := <-r.leaveChan:
			r.handleLeave(c)
		case <-r.phaseTimer.Chan():
			r.handleTick()
		case <-r.killTimer.C:
			r.handleIdleTimeout()
		case e := <-r.exit:
			r.handleExit(e)
			return
		}
	}
}

// loadTimer reads the room's persisted timer, creating a default one
// if the room has none yet. Registry timer initialization is allowed
// to fail, so a missing row is a normal case here. A transient read
// error is returned without writing anything: inserting a fresh row
// then would be newest by updated_at and reset the room's schedule.
func (r *Room) loadTimer() error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	dbTimer, err := r.ps.db.GetLatestTimerByRoomId(ctx, r.id)
	if err == nil {
		r.state = timer.State{
			Phase:      timer.Phase(dbTimer.Phase),
			StartedAt:  dbTimer.StartedAt,
			CycleCount: dbTimer.CycleCount,
		}
		r.timerRowId = dbTimer.Id
		r.advance()
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		r.state = timer.Initial(r.clock.Now().UTC())
		return fmt.Errorf("load timer: %w", err)
	}

	r.state = timer.Initial(r.clock.Now().UTC())
	r.persistTimer()
	return nil
}

// advance rolls the timer forward to the current time and persists
// the result if any phase boundary was crossed.
func (r *Room) advance() bool {
	next, transitioned := timer.Advance(r.state, r.clock.Now().UTC())
	if !transitioned {
		return false
	}

	r.state = next
	r.ps.stats.Incr(stats.TimerTransitions)
	r.persistTimer()
	return true
}

func (r *Room) persistTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	dbTimer := database.Timer{
		Id:         r.timerRowId,
		RoomId:     r.id,
		Phase:      string(r.state.Phase),
		StartedAt:  r.state.StartedAt,
		CycleCount: r.state.CycleCount,
	}

	if r.timerRowId == 0 {
		created, err := r.ps.db.CreateTimer(ctx, dbTimer)
		if err != nil {
			r.log.Printf("create timer for room %q: %v", r.externalId, err)
			return
		}
		r.timerRowId = created.Id
		return
	}

	if _, err := r.ps.db.UpdateTimer(ctx, dbTimer); err != nil {
		r.log.Printf("update timer for room %q: %v", r.externalId, err)
	}
}

// schedulePhaseTimer arms the tick for the next phase boundary,
// replacing any previously armed tick.
func (r *Room) schedulePhaseTimer() {
	if r.phaseTimer != nil {
		stopAndDrainTimer(r.phaseTimer)
	}

	d := r.state.DueAt().Sub(r.clock.Now())
	if d < 0 {
		d = 0
	}
	r.phaseTimer = r.clock.NewTimer(d)
}

// stopAndDrainTimer stops a timer and drains its channel if it
// already fired, per the time.Timer.Stop contract.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

func (r *Room) handleTick() {
	if r.advance() {
		r.broadcast(nil, TimerUpdateMessage(r.state.ViewAt(r.clock.Now().UTC())))
	}
	r.schedulePhaseTimer()
}

func (r *Room) handleJoin(c *Client) {
	r.killTimer.Stop()

	r.clients[c] = struct{}{}
	c.setRoom(r)

	now := r.clock.Now().UTC()
	if r.presence.attach(c.id, now) {
		r.ps.stats.Incr(stats.Participants)
	}

	// the timer may have crossed a boundary while nobody was ticking
	if r.advance() {
		r.schedulePhaseTimer()
		r.broadcast(c, TimerUpdateMessage(r.state.ViewAt(now)))
	}

	// seed the newcomer with the current peers and timer state, then
	// tell everyone else about the join
	participants := r.presence.snapshot()
	c.queueMessage(PresenceMessage(PresenceEventSync, participants))
	c.queueMessage(TimerUpdateMessage(r.state.ViewAt(now)))
	r.broadcast(c, PresenceMessage(PresenceEventJoin, participants))

	r.log.Printf("participant %q joined room %q (%d present)", c.id, r.externalId, r.presence.count())
}

func (r *Room) handleLeave(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.clearRoom(r)

	if r.presence.detach(c.id) {
		r.ps.stats.Decr(stats.Participants)
	}

	r.broadcast(nil, PresenceMessage(PresenceEventLeave, r.presence.snapshot()))
	r.log.Printf("participant %q left room %q (%d present)", c.id, r.externalId, r.presence.count())

	if len(r.clients) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleIdleTimeout() {
	if len(r.clients) > 0 {
		return
	}

	select {
	case r.ps.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
	default:
		r.log.Printf("unload channel full for room %q", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleExit(e exitReq) {
	r.log.Printf("room %q exiting", r.externalId)
	r.killTimer.Stop()
	if r.phaseTimer != nil {
		stopAndDrainTimer(r.phaseTimer)
	}

	// a client may have attached after the unload request was queued;
	// hand attached clients back through joinChan so the unload path
	// replays them onto a fresh room instead of leaving them on a dead
	// one
	for c := range r.clients {
		c.clearRoom(r)
		if r.presence.detach(c.id) {
			r.ps.stats.Decr(stats.Participants)
		}

		select {
		case r.joinChan <- c:
		default:
			c.stopClient()
		}
	}

	if e.done != nil {
		close(e.done)
	}
}

// broadcast queues msg on every client except skip. A client whose
// send buffer is full is torn down so a slow observer cannot hold up
// the room.
func (r *Room) broadcast(skip *Client, msg *ServerMessage) {
	for c := range r.clients {
		if c == skip {
			continue
		}

		if !c.queueMessage(msg) {
			r.log.Printf("dropping unresponsive participant %q from room %q", c.id, r.externalId)
			c.stopClient()
		}
	}
}

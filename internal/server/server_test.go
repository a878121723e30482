package server

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/stats"
	"github.com/npezzotti/go-pomoroom/internal/testutil"
)

func TestNewPomoServer(t *testing.T) {
	db := &database.MockPomoRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", stats.ActiveConnections).Once()
	su.On("RegisterMetric", stats.ActiveRooms).Once()
	su.On("RegisterMetric", stats.Participants).Once()
	su.On("RegisterMetric", stats.TimerTransitions).Once()

	ps, err := NewPomoServer(testutil.TestLogger(t), db, su, clockwork.NewRealClock())
	assert.NoError(t, err)
	assert.NotNil(t, ps.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, ps.joinChan, "expected join channel to be initialized")

	_, err = NewPomoServer(nil, db, su, clockwork.NewRealClock())
	assert.Error(t, err, "expected an error without a logger")
}

func Test_addClient_removeClient(t *testing.T) {
	ps := newTestPomoServer(t, &database.MockPomoRepository{}, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	c := newTestClient(t, ps, "p1")
	ps.addClient(c)
	assert.Contains(t, ps.clients, c, "expected client to be tracked after register")

	ps.removeClient(c)
	assert.NotContains(t, ps.clients, c, "expected client to be removed after deregister")
}

func Test_handleJoin_loadsRoomOnce(t *testing.T) {
	mockRepo := &database.MockPomoRepository{}
	defer mockRepo.AssertExpectations(t)

	ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	mockRepo.On("GetRoomByExternalId", mock.Anything, "EoGKUXPHgz").Return(testDbRoom, nil).Once()
	mockRepo.On("GetLatestTimerByRoomId", mock.Anything, 7).Return(database.Timer{
		Id:         1,
		RoomId:     7,
		Phase:      "work",
		StartedAt:  testTime,
		CycleCount: 1,
	}, nil).Once()

	c1 := newTestClient(t, ps, "p1")
	ps.handleJoin(joinRequest{roomId: "EoGKUXPHgz", client: c1})

	room, ok := ps.rooms["EoGKUXPHgz"]
	assert.True(t, ok, "expected the room to be loaded")

	assert.Eventually(t, func() bool {
		return room.presence.count() == 1
	}, time.Second, 10*time.Millisecond, "expected the join to reach the room goroutine")

	// a second join must reuse the loaded room
	c2 := newTestClient(t, ps, "p2")
	ps.handleJoin(joinRequest{roomId: "EoGKUXPHgz", client: c2})

	assert.Eventually(t, func() bool {
		return room.presence.count() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, ps.rooms, 1, "expected a single loaded room")

	ps.handleUnload(unloadRoomRequest{roomId: "EoGKUXPHgz"})
}

func Test_handleJoin_unknownRoom(t *testing.T) {
	mockRepo := &database.MockPomoRepository{}
	defer mockRepo.AssertExpectations(t)

	ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	mockRepo.On("GetRoomByExternalId", mock.Anything, "missing").Return(database.Room{}, assert.AnError).Once()

	c1 := newTestClient(t, ps, "p1")
	ps.handleJoin(joinRequest{roomId: "missing", client: c1})

	assert.Empty(t, ps.rooms, "expected no room to be loaded")
	select {
	case <-c1.stop:
	default:
		t.Error("expected the client to be stopped when its room cannot be resolved")
	}
}

func Test_handleUnload(t *testing.T) {
	mockRepo := &database.MockPomoRepository{}
	defer mockRepo.AssertExpectations(t)

	ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	mockRepo.On("GetRoomByExternalId", mock.Anything, "EoGKUXPHgz").Return(testDbRoom, nil).Once()
	mockRepo.On("GetLatestTimerByRoomId", mock.Anything, 7).Return(database.Timer{
		Id:         1,
		RoomId:     7,
		Phase:      "work",
		StartedAt:  testTime,
		CycleCount: 1,
	}, nil).Once()

	c1 := newTestClient(t, ps, "p1")
	ps.handleJoin(joinRequest{roomId: "EoGKUXPHgz", client: c1})
	room := ps.rooms["EoGKUXPHgz"]

	assert.Eventually(t, func() bool {
		return room.presence.count() == 1
	}, time.Second, 10*time.Millisecond)

	// unload blocks until the room goroutine confirms its exit
	ps.handleUnload(unloadRoomRequest{roomId: "EoGKUXPHgz"})
	assert.Empty(t, ps.rooms, "expected the room to be removed")

	// unloading an unknown room is a no-op
	ps.handleUnload(unloadRoomRequest{roomId: "EoGKUXPHgz"})
}

func Test_handleUnload_replaysAttachedClient(t *testing.T) {
	mockRepo := &database.MockPomoRepository{}
	defer mockRepo.AssertExpectations(t)

	ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	mockRepo.On("GetRoomByExternalId", mock.Anything, "EoGKUXPHgz").Return(testDbRoom, nil).Twice()
	mockRepo.On("GetLatestTimerByRoomId", mock.Anything, 7).Return(database.Timer{
		Id:         1,
		RoomId:     7,
		Phase:      "work",
		StartedAt:  testTime,
		CycleCount: 1,
	}, nil).Twice()

	c1 := newTestClient(t, ps, "p1")
	ps.handleJoin(joinRequest{roomId: "EoGKUXPHgz", client: c1})
	room := ps.rooms["EoGKUXPHgz"]

	assert.Eventually(t, func() bool {
		return c1.getRoom() == room
	}, time.Second, 10*time.Millisecond, "expected the client to be attached before the unload")

	// an unload after the room already attached the client must move
	// the client onto the fresh room, not leave it on the dead one
	ps.handleUnload(unloadRoomRequest{roomId: "EoGKUXPHgz"})

	fresh, ok := ps.rooms["EoGKUXPHgz"]
	assert.True(t, ok, "expected the client to be replayed onto a fresh room")
	assert.NotSame(t, room, fresh)

	assert.Eventually(t, func() bool {
		return c1.getRoom() == fresh && fresh.presence.count() == 1
	}, time.Second, 10*time.Millisecond, "expected the client to be attached to the fresh room")

	select {
	case <-c1.stop:
		t.Error("expected the replayed client not to be stopped")
	default:
	}
}

func Test_start_unloadsOnTimerReadError(t *testing.T) {
	mockRepo := &database.MockPomoRepository{}
	defer mockRepo.AssertExpectations(t)

	ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

	mockRepo.On("GetLatestTimerByRoomId", mock.Anything, 7).Return(database.Timer{}, assert.AnError).Once()

	room := newRoom(ps, testDbRoom)
	go room.start()

	select {
	case req := <-ps.unloadRoomChan:
		assert.Equal(t, "EoGKUXPHgz", req.roomId, "expected the room to request its own unload")
	case <-time.After(time.Second):
		t.Fatal("expected an unload request after a timer read error")
	}
	mockRepo.AssertNotCalled(t, "CreateTimer", mock.Anything, mock.Anything)

	done := make(chan struct{})
	room.exit <- exitReq{done: done}
	<-done
}

func Test_ParticipantCount(t *testing.T) {
	ps := newTestPomoServer(t, &database.MockPomoRepository{}, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))
	go ps.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ps.Shutdown(ctx))
	}()

	n, err := ps.ParticipantCount(context.Background(), "nosuchroom")
	assert.NoError(t, err)
	assert.Equal(t, 0, n, "expected zero participants for an unloaded room")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ps.ParticipantCount(cancelled, "nosuchroom")
	assert.Error(t, err, "expected a cancelled context to abort the count")
}

func TestShutdown(t *testing.T) {
	t.Run("clean shutdown", func(t *testing.T) {
		mockRepo := &database.MockPomoRepository{}
		ps := newTestPomoServer(t, mockRepo, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))

		mockRepo.On("GetRoomByExternalId", mock.Anything, "EoGKUXPHgz").Return(testDbRoom, nil).Once()
		mockRepo.On("GetLatestTimerByRoomId", mock.Anything, 7).Return(database.Timer{
			Id:         1,
			RoomId:     7,
			Phase:      "work",
			StartedAt:  testTime,
			CycleCount: 1,
		}, nil).Once()

		go ps.Run()

		c1 := newTestClient(t, ps, "p1")
		ps.Register(c1)
		ps.Join(c1, "EoGKUXPHgz")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ps.Shutdown(ctx), "expected a clean shutdown")

		select {
		case <-c1.stop:
		default:
			t.Error("expected connected clients to be stopped on shutdown")
		}
	})

	t.Run("expired context", func(t *testing.T) {
		ps := newTestPomoServer(t, &database.MockPomoRepository{}, &stats.MockStatsUpdater{}, clockwork.NewFakeClockAt(testTime))
		// Run is intentionally not started, so the stop request cannot
		// be accepted
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, ps.Shutdown(ctx))
	})
}

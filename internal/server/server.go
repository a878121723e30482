package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/stats"
)

type joinRequest struct {
	roomId string
	client *Client
}

type unloadRoomRequest struct {
	roomId string
}

type countRequest struct {
	roomId string
	resp   chan int
}

type stopRequest struct {
	done chan struct{}
}

// PomoServer owns the set of loaded rooms and connected clients. All
// room map access happens on the Run goroutine.
type PomoServer struct {
	log   *log.Logger
	db    database.PomoRepository
	stats stats.StatsProvider
	clock clockwork.Clock

	clients     map[*Client]struct{}
	clientsLock sync.Mutex

	joinChan       chan joinRequest
	registerChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	countChan      chan countRequest
	rooms          map[string]*Room
	stop           chan stopRequest
}

func NewPomoServer(logger *log.Logger, db database.PomoRepository, su stats.StatsProvider, clock clockwork.Clock) (*PomoServer, error) {
	if logger == nil || db == nil || su == nil {
		return nil, fmt.Errorf("logger, database and stats are required")
	}

	su.RegisterMetric(stats.ActiveConnections)
	su.RegisterMetric(stats.ActiveRooms)
	su.RegisterMetric(stats.Participants)
	su.RegisterMetric(stats.TimerTransitions)

	return &PomoServer{
		log:            logger,
		db:             db,
		stats:          su,
		clock:          clock,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan joinRequest, 256),
		registerChan:   make(chan *Client, 256),
		deRegisterChan: make(chan *Client, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 16),
		countChan:      make(chan countRequest),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopRequest),
	}, nil
}

func (ps *PomoServer) Run() {
	for {
		select {
		case req := <-ps.joinChan:
			ps.handleJoin(req)
		case c := <-ps.registerChan:
			ps.log.Printf("adding connection %q", c.id)
			ps.addClient(c)
			ps.stats.Incr(stats.ActiveConnections)
		case c := <-ps.deRegisterChan:
			ps.log.Printf("removing connection %q", c.id)
			ps.removeClient(c)
			ps.stats.Decr(stats.ActiveConnections)
		case req := <-ps.unloadRoomChan:
			ps.handleUnload(req)
		case req := <-ps.countChan:
			var n int
			if room, ok := ps.rooms[req.roomId]; ok {
				n = room.presence.count()
			}
			req.resp <- n
		case req := <-ps.stop:
			ps.log.Println("shutting down rooms")
			for _, r := range ps.rooms {
				done := make(chan struct{})
				r.exit <- exitReq{done: done}
				<-done
			}
			ps.rooms = make(map[string]*Room)

			if req.done != nil {
				close(req.done)
			}
			return
		}
	}
}

// handleJoin routes a client to its room, loading the room on first
// use.
func (ps *PomoServer) handleJoin(req joinRequest) {
	room, ok := ps.rooms[req.roomId]
	if !ok {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		dbRoom, err := ps.db.GetRoomByExternalId(ctx, req.roomId)
		if err != nil {
			ps.log.Printf("room %q not found: %v", req.roomId, err)
			req.client.stopClient()
			return
		}

		room = newRoom(ps, dbRoom)
		ps.rooms[room.externalId] = room
		ps.stats.Incr(stats.ActiveRooms)
		go room.start()
	}

	select {
	case room.joinChan <- req.client:
	default:
		ps.log.Printf("join channel full on room %q", room.externalId)
		req.client.stopClient()
	}
}

func (ps *PomoServer) handleUnload(req unloadRoomRequest) {
	room, ok := ps.rooms[req.roomId]
	if !ok {
		return
	}

	ps.log.Printf("unloading room %q", req.roomId)
	delete(ps.rooms, req.roomId)

	done := make(chan struct{})
	room.exit <- exitReq{done: done}
	<-done
	ps.stats.Decr(stats.ActiveRooms)

	// replay joins the room never processed, plus any clients the room
	// handed back from its exit, onto a fresh room
	for {
		select {
		case c := <-room.joinChan:
			ps.handleJoin(joinRequest{roomId: req.roomId, client: c})
		default:
			return
		}
	}
}

// Register adds a new connection and starts tracking it for shutdown.
func (ps *PomoServer) Register(c *Client) {
	ps.registerChan <- c
}

// Join asks the server to attach c to the room with the given
// external id.
func (ps *PomoServer) Join(c *Client, roomId string) {
	select {
	case ps.joinChan <- joinRequest{roomId: roomId, client: c}:
	default:
		ps.log.Println("join channel full")
		c.stopClient()
	}
}

// ParticipantCount reports how many participants are attached to the
// room with the given external id. An unloaded room has zero.
func (ps *PomoServer) ParticipantCount(ctx context.Context, roomId string) (int, error) {
	resp := make(chan int, 1)

	select {
	case ps.countChan <- countRequest{roomId: roomId, resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case n := <-resp:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (ps *PomoServer) deregister(c *Client) {
	select {
	case ps.deRegisterChan <- c:
	default:
		ps.log.Println("deregister channel full")
	}
}

func (ps *PomoServer) addClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	ps.clients[c] = struct{}{}
}

func (ps *PomoServer) removeClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	delete(ps.clients, c)
}

func (ps *PomoServer) Shutdown(ctx context.Context) error {
	ps.log.Println("received shutdown signal")

	ps.clientsLock.Lock()
	for c := range ps.clients {
		c.stopClient()
	}
	ps.clientsLock.Unlock()

	done := make(chan struct{})
	select {
	case ps.stop <- stopRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

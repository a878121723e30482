package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/npezzotti/go-pomoroom/internal/registry"
	"github.com/npezzotti/go-pomoroom/internal/server"
	"github.com/npezzotti/go-pomoroom/internal/types"
)

// joinOrCreateTimeout bounds how long a join-or-create request may
// spend resolving the create-vs-existing race.
const joinOrCreateTimeout = 5 * time.Second

type JoinOrCreateRoomRequest struct {
	Name string `json:"name"`
}

type JoinedRoomResponse struct {
	Room types.Room `json:"room"`
}

func (s *PomoApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeError sends an ApiError, attaching the underlying cause as
// details only in dev mode.
func (s *PomoApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if s.devMode && errResp.Err != nil {
		errResp.Details = errResp.Err.Error()
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *PomoApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Println("health check:", err)
		s.writeError(w, NewDatabaseError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *PomoApp) joinOrCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinOrCreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewValidationError("room name is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), joinOrCreateTimeout)
	defer cancel()

	room, created, err := s.registry.JoinOrCreate(ctx, req.Name)
	if err != nil {
		var vErr *registry.ValidationError
		if errors.As(err, &vErr) {
			s.writeError(w, NewValidationError(vErr.Message))
			return
		}

		s.log.Println("join or create room:", err)
		s.writeError(w, NewDatabaseError(err))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	s.writeJson(w, status, JoinedRoomResponse{Room: room})
}

func (s *PomoApp) getRoom(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		s.writeError(w, NewValidationError("room id is required"))
		return
	}

	room, err := s.db.GetRoomByExternalId(r.Context(), externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.log.Println("get room:", err)
		s.writeError(w, NewDatabaseError(err))
		return
	}

	count, err := s.ps.ParticipantCount(r.Context(), externalId)
	if err != nil {
		s.log.Println("participant count:", err)
		s.writeError(w, NewInternalError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.RoomInfo{
		Room: types.Room{
			Id:        room.ExternalId,
			Name:      room.Name,
			CreatedAt: room.CreatedAt,
		},
		ParticipantsCount: count,
	})
}

func (s *PomoApp) serveWs(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room")
	if roomId == "" {
		s.writeError(w, NewValidationError("room id is required"))
		return
	}

	if _, err := s.db.GetRoomByExternalId(r.Context(), roomId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.log.Println("get room:", err)
		s.writeError(w, NewDatabaseError(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(uuid.NewString(), conn, s.ps, s.log)

	s.ps.Register(client)
	s.ps.Join(client, roomId)
	go client.Write()
	go client.Read()
}

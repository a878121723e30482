package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/npezzotti/go-pomoroom/internal/config"
	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/registry"
	"github.com/npezzotti/go-pomoroom/internal/server"
)

type PomoApp struct {
	log            *log.Logger
	db             database.PomoRepository
	registry       *registry.Registry
	ps             *server.PomoServer
	mux            *http.Server
	allowedOrigins []string
	devMode        bool
}

func NewPomoApp(mux *http.ServeMux, logger *log.Logger, ps *server.PomoServer, reg *registry.Registry, db database.PomoRepository, cfg *config.Config) *PomoApp {
	s := &PomoApp{
		log:            logger,
		db:             db,
		registry:       reg,
		ps:             ps,
		allowedOrigins: cfg.AllowedOrigins,
		devMode:        cfg.DevMode,
	}

	mux.HandleFunc("GET /api/healthz", s.healthCheck)
	mux.HandleFunc("POST /api/rooms/join-or-create", s.joinOrCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.getRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PomoApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PomoApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/npezzotti/go-pomoroom/internal/api"
	"github.com/npezzotti/go-pomoroom/internal/config"
	"github.com/npezzotti/go-pomoroom/internal/database"
	"github.com/npezzotti/go-pomoroom/internal/registry"
	"github.com/npezzotti/go-pomoroom/internal/server"
	"github.com/npezzotti/go-pomoroom/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	migrationsURL  string
	devMode        bool
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&migrationsURL, "migrations", "file://migrations", "migrations source URL")
	flag.BoolVar(&devMode, "dev", false, "include diagnostic details in error responses")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[pomoroom] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, migrationsURL, []string(allowedOrigins), devMode)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgPomoRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(cfg.MigrationsURL); err != nil {
		logger.Fatal("migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	clock := clockwork.NewRealClock()

	pomoServer, err := server.NewPomoServer(logger, dbConn, statsUpdater, clock)
	if err != nil {
		logger.Fatal("new pomo server:", err)
	}

	reg := registry.NewRegistry(logger, dbConn, clock)

	srv := api.NewPomoApp(mux, logger, pomoServer, reg, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go pomoServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down room server...")
	if err := pomoServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("room server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

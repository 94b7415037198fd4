package www

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/cadsdf/ostromd/config"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/database"
	"github.com/cadsdf/ostromd/facts"
)

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	db      *database.Database
	coord   *coordinator.Coordinator
	loc     *time.Location
	hub     *Hub
	version string
}

//go:embed static
var embeddedStaticDir embed.FS

func StartServer(db *database.Database, coord *coordinator.Coordinator, loc *time.Location, config config.AppConfigApi, version string) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger:  logger,
		config:  config,
		db:      db,
		coord:   coord,
		loc:     loc,
		hub:     NewHub(logger),
		version: version,
	}

	// Every snapshot swap goes straight out to connected clients.
	coord.Subscribe(func(snap coordinator.Snapshot) {
		s.broadcast(snap)
	})

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	http.Handle("/", staticFilesHandler(config.WwwDir))

	http.Handle("/api/snapshot", logReqMW(NewSnapshotHandler(
		logger.With(slog.String("handler", "snapshot")),
		s.coord,
		s.loc)))

	http.Handle("/api/minimums", logReqMW(NewMinimumsHandler(
		logger.With(slog.String("handler", "minimums")),
		s.coord,
		s.loc)))

	http.Handle("/api/prices", logReqMW(NewPricesHandler(
		logger.With(slog.String("handler", "prices")),
		s.coord,
		s.loc)))

	http.Handle("/api/status", logReqMW(NewStatusHandler(
		logger.With(slog.String("handler", "status")),
		s.coord,
		s.version)))

	http.Handle("/api/refresh", logReqMW(NewRefreshHandler(
		logger.With(slog.String("handler", "refresh")),
		s.coord,
		s.loc)))

	http.Handle("/api/log", logReqMW(NewLogHandler(
		logger.With(slog.String("handler", "log")),
		s.db)))

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(s.hub, w, r, r.Header.Get("User-Agent"))
		if err != nil {
			s.logger.Error("websocket upgrade failed", slog.Any("error", err))
			return
		}

		// Hand the newcomer the current state right away.
		if payload, err := s.factsPayload(s.coord.Current()); err == nil {
			client.Push(payload)
		}
	})

	return s
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "address", s.config.Address, "port", s.config.Port)
	srv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	// The current price changes at the top of the hour even when no
	// refresh ran, so clients get a push on every hour rollover.
	ticker := time.NewTicker(time.Second * 20)
	defer ticker.Stop()
	lastHour := time.Now().Hour()

	for {
		select {
		case err := <-srvErrors:
			if err != nil {
				s.logger.Error("server error", slog.Any("error", err))
			}

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			if err != nil {
				s.logger.Error("server shutdown failed", slog.Any("error", err))
			}
			return

		case <-ticker.C:
			if hour := time.Now().Hour(); hour != lastHour {
				lastHour = hour
				s.broadcast(s.coord.Current())
			}
		}
	}
}

func (s *Server) broadcast(snap coordinator.Snapshot) {
	payload, err := s.factsPayload(snap)
	if err != nil {
		s.logger.Error("encoding facts for broadcast", slog.Any("error", err))
		return
	}
	s.hub.Broadcast(payload)
}

func (s *Server) factsPayload(snap coordinator.Snapshot) ([]byte, error) {
	return json.Marshal(facts.Build(snap, time.Now(), s.loc))
}

func staticFilesHandler(extDir *string) http.Handler {
	if extDir != nil && *extDir != "" {
		staticDir := path.Join(*extDir, "static")
		if _, err := os.Stat(staticDir); err == nil {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	fsys, err := fs.Sub(embeddedStaticDir, "static")
	if err != nil {
		log.Panic(err)
	}
	return http.FileServer(http.FS(fsys))
}

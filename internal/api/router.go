package api

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"roombalink/internal/core"
	"roombalink/internal/eventbus"
	"roombalink/internal/robot"
	"roombalink/internal/store"
	"roombalink/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	scheduler  *core.Scheduler
	robot      *robot.Client
	store      *store.Store
	bus        eventbus.Bus
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API server.
func NewServer(addr, authToken string, scheduler *core.Scheduler, robotClient *robot.Client, st *store.Store, bus eventbus.Bus, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		scheduler: scheduler,
		robot:     robotClient,
		store:     st,
		bus:       bus,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes(web.Files())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes(staticFS fs.FS) {
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(staticFS)))

	s.router.Get("/", s.handleIndex(staticFS))
	s.router.Handle("/assets/*", fileServer)

	var wsHandler http.Handler = http.HandlerFunc(s.handleWebSocket)
	if s.authToken != "" {
		wsHandler = AuthMiddleware(s.authToken)(wsHandler)
	}
	s.router.Handle("/ws", wsHandler)

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", s.handleListSchedules)
			r.Post("/", s.handleCreateSchedule)

			r.Route("/{scheduleID}", func(r chi.Router) {
				r.Get("/", s.handleGetSchedule)
				r.Patch("/", s.handleUpdateSchedule)
				r.Delete("/", s.handleCancelSchedule)
			})
		})

		r.Route("/robot", func(r chi.Router) {
			r.Get("/state", s.handleRobotState)
			r.Post("/command", s.handleRobotCommand)
			r.Get("/discover", s.handleRobotDiscover)
		})

		r.Route("/telemetry", func(r chi.Router) {
			r.Get("/samples", s.handleTelemetrySamples)
			r.Get("/hourly", s.handleTelemetryHourly)
		})

		r.Get("/audit", s.handleListAudit)
	})
}

func (s *Server) handleIndex(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := staticFS.Open("index.html")
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		defer file.Close()
		info, err := fs.Stat(staticFS, "index.html")
		modTime := time.Now()
		if err == nil {
			modTime = info.ModTime()
		}
		if reader, ok := file.(io.ReadSeeker); ok {
			http.ServeContent(w, r, "index.html", modTime, reader)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to load index", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", modTime, bytes.NewReader(data))
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombalink/internal/api"
	"roombalink/internal/config"
	"roombalink/internal/core"
	"roombalink/internal/eventbus"
	"roombalink/internal/logging"
	roombamcp "roombalink/internal/mcp"
	"roombalink/internal/notify"
	"roombalink/internal/robot"
	"roombalink/internal/store"
	"roombalink/internal/telemetry"
)

// robotEvent is the wire shape of robot state changes on the event bus.
type robotEvent struct {
	Kind  string      `json:"kind"`
	Event string      `json:"event"`
	State robot.State `json:"state"`
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	// In MCP mode stdout carries the protocol, so logs go to stderr.
	var logger *slog.Logger
	if cfg.Mode == "mcp" {
		logger = logging.NewWithWriter(cfg.Log.Level, os.Stderr)
	} else {
		logger = logging.New(cfg.Log.Level)
	}

	baseCtx := context.Background()
	st, err := store.Open(baseCtx, cfg.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer st.DB.Close()

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	bus := eventbus.New()

	robotClient := robot.NewClient(cfg.Robot.Host, cfg.Robot.BLID, cfg.Robot.Password, logger)
	recorder := telemetry.NewRecorder(st, cfg.Telemetry.Retention, logger)
	robotClient.OnState(recorder.Record)
	robotClient.OnState(func(state robot.State) {
		bus.Publish(eventbus.Event{
			Type: "robot.state",
			Data: robotEvent{Kind: "robot", Event: "state", State: state},
		})
	})
	if robotClient.Configured() {
		if err := robotClient.Connect(ctx); err != nil {
			logger.Error("connect robot, will stay disconnected", "host", cfg.Robot.Host, "err", err)
		}
	} else {
		logger.Warn("robot credentials not configured; commands will fail until set")
	}
	defer robotClient.Disconnect()

	if err := recorder.Start(ctx); err != nil {
		logger.Error("start telemetry recorder", "err", err)
		os.Exit(1)
	}

	taskFile := store.NewTaskFile(cfg.StateDir, logger)
	executor := robot.NewCommandExecutor(robotClient, logger)
	scheduler := core.NewScheduler(taskFile, executor,
		func(e core.Event) {
			bus.Publish(eventbus.Event{Type: "schedule." + e.Event, Data: e})
		},
		func(entry core.AuditEntry) {
			if err := st.AppendAudit(ctx, entry); err != nil {
				logger.Warn("append audit row", "err", err)
			}
		},
		logger)
	scheduler.Start(ctx)

	if cfg.Notification.Bark.Enabled {
		notifier, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
		if err != nil {
			logger.Error("configure bark notifier", "err", err)
		} else {
			go notify.Watch(ctx, bus, notifier, logger)
		}
	}

	shutdown := func() {
		scheduler.Dispose()
		stopCtx := recorder.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(cfg.ShutdownGrace):
			logger.Warn("telemetry recorder stop timed out")
		}
	}

	switch cfg.Mode {
	case "http":
		runHTTPMode(cfg, scheduler, robotClient, st, bus, logger, shutdown)
	case "mcp":
		runMCPMode(cfg, scheduler, robotClient, logger, cancel, shutdown)
	case "both":
		runBothMode(cfg, scheduler, robotClient, st, bus, logger, shutdown)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, scheduler *core.Scheduler, robotClient *robot.Client, st *store.Store, bus eventbus.Bus, logger *slog.Logger, shutdown func()) {
	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, scheduler, robotClient, st, bus, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	shutdown()
}

// runMCPMode starts only the MCP server on stdio.
func runMCPMode(cfg *config.Config, scheduler *core.Scheduler, robotClient *robot.Client, logger *slog.Logger, cancel context.CancelFunc, shutdown func()) {
	mcpServer := roombamcp.NewMCPServer(scheduler, robotClient, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		shutdown()
		os.Exit(1)
	}
	shutdown()
}

// runBothMode starts both HTTP and MCP servers.
func runBothMode(cfg *config.Config, scheduler *core.Scheduler, robotClient *robot.Client, st *store.Store, bus eventbus.Bus, logger *slog.Logger, shutdown func()) {
	mcpServer := roombamcp.NewMCPServer(scheduler, robotClient, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, scheduler, robotClient, st, bus, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	shutdown()
	logger.Info("shutdown complete")
}

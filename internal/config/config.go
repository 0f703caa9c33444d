package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// RobotConfig holds the local-network credentials for the vacuum. BLID and
// password come from the robot's pairing handshake; the bridge never talks
// to the iRobot cloud.
type RobotConfig struct {
	Host     string
	BLID     string
	Password string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// BarkConfig holds Bark push notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// TelemetryConfig controls the analytics store.
type TelemetryConfig struct {
	// Raw samples older than Retention are rolled up into hourly buckets.
	Retention time.Duration
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Robot        RobotConfig
	Log          LogConfig
	Notification NotificationConfig
	Telemetry    TelemetryConfig

	Mode          string // http | mcp | both
	StateDir      string
	ShutdownGrace time.Duration
}

const (
	defaultAddr               = "0.0.0.0:8270"
	defaultLogLevel           = "info"
	defaultMode               = "http"
	defaultShutdownGrace      = 5 * time.Second
	defaultTelemetryRetention = 72 * time.Hour
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > environment variables > .env file > defaults.
func Parse() (*Config, error) {
	// The .env file is optional; check the working directory first, then the
	// user config directory.
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "roombalink", ".env"))
	}
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("ROOMBALINK_ADDR", defaultAddr),
			AuthToken: getEnvString("ROOMBALINK_AUTH_TOKEN", ""),
		},
		Robot: RobotConfig{
			Host:     getEnvString("ROOMBALINK_ROBOT_HOST", ""),
			BLID:     getEnvString("ROOMBALINK_ROBOT_BLID", ""),
			Password: getEnvString("ROOMBALINK_ROBOT_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: getEnvString("ROOMBALINK_LOG_LEVEL", defaultLogLevel),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("ROOMBALINK_BARK_URL", ""),
				Enabled: getEnvBool("ROOMBALINK_BARK_ENABLED", false),
			},
		},
		Telemetry: TelemetryConfig{
			Retention: getEnvDuration("ROOMBALINK_TELEMETRY_RETENTION", defaultTelemetryRetention),
		},
		Mode:          getEnvString("ROOMBALINK_MODE", defaultMode),
		StateDir:      getEnvString("ROOMBALINK_STATE_DIR", ""),
		ShutdownGrace: getEnvDuration("ROOMBALINK_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var (
		addr          string
		mode          string
		stateDir      string
		logLevel      string
		robotHost     string
		shutdownGrace time.Duration
	)
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp or both")
	flag.StringVar(&stateDir, "state-dir", "", "Directory for the database and schedule file")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&robotHost, "robot-host", "", "IP address of the robot on the local network")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")
	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if robotHost != "" {
		cfg.Robot.Host = robotHost
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	switch cfg.Mode {
	case "http", "mcp", "both":
	default:
		return nil, fmt.Errorf("invalid mode %q (want http, mcp or both)", cfg.Mode)
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}
	if cfg.Telemetry.Retention < time.Hour {
		cfg.Telemetry.Retention = defaultTelemetryRetention
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "roombalink")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Package config provides configuration loading for digipin.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and DIGIPIN_* environment variables, in that order of precedence (lowest
// first). See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageNATS   = "nats"
)

// Clipboard modes.
const (
	ClipboardOSC52   = "osc52"
	ClipboardCommand = "command"
	ClipboardNone    = "none"
)

// Location providers.
const (
	LocationIP     = "ip"
	LocationStatic = "static"
	LocationNone   = "none"
)

// DefaultHistoryLimit is the retention limit applied when none is persisted.
const DefaultHistoryLimit = 20

// Config holds the complete digipin configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	History       HistoryConfig       `koanf:"history"`
	Notify        NotifyConfig        `koanf:"notify"`
	Clipboard     ClipboardConfig     `koanf:"clipboard"`
	Location      LocationConfig      `koanf:"location"`
	Maps          MapsConfig          `koanf:"maps"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration for digipind.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	Backend    string `koanf:"backend"`
	Path       string `koanf:"path"`
	NATSURL    string `koanf:"nats_url"`
	NATSBucket string `koanf:"nats_bucket"`
	NATSToken  Secret `koanf:"nats_token"`
}

// HistoryConfig holds history defaults.
type HistoryConfig struct {
	DefaultLimit int `koanf:"default_limit"`
}

// NotifyConfig controls where user notifications are delivered.
type NotifyConfig struct {
	Log         bool   `koanf:"log"`
	NATS        bool   `koanf:"nats"`
	NATSSubject string `koanf:"nats_subject"`
}

// ClipboardConfig controls clipboard writes.
type ClipboardConfig struct {
	Mode    string   `koanf:"mode"`
	Command []string `koanf:"command"`
}

// LocationConfig controls the "use current location" source.
type LocationConfig struct {
	Provider      string   `koanf:"provider"`
	URL           string   `koanf:"url"`
	LatPath       string   `koanf:"lat_path"`
	LngPath       string   `koanf:"lng_path"`
	StaticLat     float64  `koanf:"static_lat"`
	StaticLng     float64  `koanf:"static_lng"`
	Timeout       Duration `koanf:"timeout"`
	RatePerMinute int      `koanf:"rate_per_minute"`
}

// MapsConfig controls the external map viewer.
type MapsConfig struct {
	BaseURL     string   `koanf:"base_url"`
	OpenCommand []string `koanf:"open_command"`
}

// ObservabilityConfig holds OpenTelemetry and logging settings.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Backend:    StorageFile,
			Path:       "~/.config/digipin/storage.json",
			NATSURL:    "nats://localhost:4222",
			NATSBucket: "digipin",
		},
		History: HistoryConfig{
			DefaultLimit: DefaultHistoryLimit,
		},
		Notify: NotifyConfig{
			Log:         true,
			NATSSubject: "digipin.notifications",
		},
		Clipboard: ClipboardConfig{
			Mode: ClipboardOSC52,
		},
		Location: LocationConfig{
			Provider:      LocationIP,
			URL:           "https://ipapi.co/json/",
			LatPath:       "latitude",
			LngPath:       "longitude",
			Timeout:       Duration(10 * time.Second),
			RatePerMinute: 30,
		},
		Maps: MapsConfig{
			BaseURL: "https://www.google.com/maps",
		},
		Observability: ObservabilityConfig{
			ServiceName: "digipin",
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			LogLevel:    "info",
			LogFormat:   "console",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the file backend")
		}
	case StorageMemory:
	case StorageNATS:
		if c.Storage.NATSURL == "" || c.Storage.NATSBucket == "" {
			return errors.New("storage.nats_url and storage.nats_bucket are required for the nats backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.History.DefaultLimit <= 0 {
		return fmt.Errorf("history.default_limit must be positive, got %d", c.History.DefaultLimit)
	}

	if c.Notify.NATS && c.Notify.NATSSubject == "" {
		return errors.New("notify.nats_subject is required when nats notifications are enabled")
	}

	switch c.Clipboard.Mode {
	case ClipboardOSC52, ClipboardNone:
	case ClipboardCommand:
		if len(c.Clipboard.Command) == 0 {
			return errors.New("clipboard.command is required in command mode")
		}
	default:
		return fmt.Errorf("unknown clipboard mode %q", c.Clipboard.Mode)
	}

	switch c.Location.Provider {
	case LocationIP:
		if c.Location.URL == "" {
			return errors.New("location.url is required for the ip provider")
		}
	case LocationStatic:
		if math.IsNaN(c.Location.StaticLat) || math.IsNaN(c.Location.StaticLng) {
			return errors.New("location.static_lat and location.static_lng must be numbers")
		}
	case LocationNone:
	default:
		return fmt.Errorf("unknown location provider %q", c.Location.Provider)
	}
	if c.Location.Timeout.Duration() <= 0 {
		return errors.New("location.timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/digipin/internal/config"
)

// Supported OTLP protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled         bool
	Endpoint        string
	Protocol        string
	ServiceName     string
	ServiceVersion  string
	Insecure        bool // no TLS; only allowed for local endpoints
	TLSSkipVerify   bool
	SamplingRate    float64
	MetricsEnabled  bool
	ExportInterval  config.Duration
	ShutdownTimeout config.Duration
}

// NewDefaultConfig returns telemetry defaults.
// Telemetry is disabled unless a collector is configured.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		ServiceName:     "digipin",
		ServiceVersion:  "dev",
		Insecure:        true,
		SamplingRate:    1.0,
		MetricsEnabled:  true,
		ExportInterval:  config.Duration(15 * time.Second),
		ShutdownTimeout: config.Duration(5 * time.Second),
	}
}

// FromObservability derives telemetry settings from the application config.
func FromObservability(obs config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = obs.EnableTelemetry
	if obs.Endpoint != "" {
		cfg.Endpoint = obs.Endpoint
	}
	if obs.Protocol != "" {
		cfg.Protocol = obs.Protocol
	}
	if obs.ServiceName != "" {
		cfg.ServiceName = obs.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Insecure = cfg.isLocalEndpoint()
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; use TLS or a local endpoint")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	if c.MetricsEnabled && c.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("export interval must be positive when metrics enabled")
	}
	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	return nil
}

// isLocalEndpoint reports whether the endpoint host is a loopback address.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	switch {
	case strings.HasPrefix(host, "["):
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	case strings.Count(host, ":") == 1:
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}

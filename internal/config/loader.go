package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DIGIPIN_"
)

// listKeys are split on whitespace when read from the environment.
var listKeys = map[string]bool{
	"clipboard.command": true,
	"maps.open_command": true,
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DIGIPIN_SERVER_HTTP_PORT, DIGIPIN_STORAGE_BACKEND, etc.)
//  2. YAML config file (~/.config/digipin/config.yaml)
//  3. Defaults (see Default)
//
// An empty configPath selects the default path. A missing file is not an
// error.
//
// The file must live under ~/.config/digipin/ or /etc/digipin/, be at most
// 1MB and have 0600 or 0400 permissions.
//
// # Environment Variable Mapping
//
// The DIGIPIN_ prefix is stripped, the remainder is lowercased and split on
// the first underscore:
//
//	DIGIPIN_SERVER_HTTP_PORT   -> server.http_port
//	DIGIPIN_STORAGE_NATS_URL   -> storage.nats_url
//	DIGIPIN_CLIPBOARD_COMMAND  -> clipboard.command (split on whitespace)
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps DIGIPIN_SECTION_FIELD_NAME to section.field_name.
func envTransform(key, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower, value
	}

	path := parts[0] + "." + parts[1]
	if listKeys[path] {
		return path, strings.Fields(value)
	}
	return path, value
}

// DefaultDir returns ~/.config/digipin.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "digipin"), nil
}

// readConfigFile returns the file's content, or nil when it does not
// exist. Size and permissions are checked on the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet.
		resolvedPath = absPath
	}

	dir, err := DefaultDir()
	if err != nil {
		return err
	}

	allowedDirs := []string{dir, "/etc/digipin"}
	for _, allowed := range allowedDirs {
		candidates := []string{allowed}
		if resolved, err := filepath.EvalSymlinks(allowed); err == nil && resolved != allowed {
			candidates = append(candidates, resolved)
		}
		for _, c := range candidates {
			if resolvedPath == c || strings.HasPrefix(resolvedPath, c+string(filepath.Separator)) {
				return nil
			}
		}
	}

	return fmt.Errorf("config file must be in ~/.config/digipin/ or /etc/digipin/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults restores defaults for values explicitly zeroed by a source.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.History.DefaultLimit == 0 {
		cfg.History.DefaultLimit = def.History.DefaultLimit
	}
	if cfg.Location.Timeout == 0 {
		cfg.Location.Timeout = def.Location.Timeout
	}
	if cfg.Maps.BaseURL == "" {
		cfg.Maps.BaseURL = def.Maps.BaseURL
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = def.Observability.ServiceName
	}
}

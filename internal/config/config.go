package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for mailbot.
type Config struct {
	General GeneralConfig `json:"general"`
	Service ServiceConfig `json:"service"`
	Loop    LoopConfig    `json:"loop"`
	Mail    MailConfig    `json:"mail"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	DataDir     string `json:"dataDir"`     // holds inbox.db / outbox.db
	LogLevel    string `json:"logLevel"`    // debug | info | warn | error
	CatalogPath string `json:"catalogPath"` // endpoint catalog YAML
}

// ServiceConfig points at the external structured-data service.
type ServiceConfig struct {
	APIBase string `json:"apiBase,omitempty"`
	APIKey  string `json:"apiKey"` // usually ${NOTION_KEY} via env expansion
	Version string `json:"version,omitempty"`
}

type LoopConfig struct {
	ChunkSize        int `json:"chunkSize"`
	ActiveDelayMs    int `json:"activeDelayMs"`    // yield between active iterations
	IdleProbeSeconds int `json:"idleProbeSeconds"` // probe cadence with no work
	IdleAfterSeconds int `json:"idleAfterSeconds"` // quiet time before INACTIVE
}

type MailConfig struct {
	PollLimit           int    `json:"pollLimit"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	SpoolDir            string `json:"spoolDir,omitempty"` // local spool gateway directory
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`     // listen address, e.g. 127.0.0.1:9090
	Endpoint string `json:"endpoint"` // HTTP path serving the exposition text
}

// DefaultConfigDir returns the default config directory (~/.mailbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailbot"
	}
	return filepath.Join(home, ".mailbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.CatalogPath = ExpandPath(cfg.General.CatalogPath)
	cfg.Mail.SpoolDir = ExpandPath(cfg.Mail.SpoolDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.DataDir == "" {
		errs = append(errs, "general.dataDir is required")
	}
	if cfg.General.CatalogPath == "" {
		errs = append(errs, "general.catalogPath is required")
	}

	if cfg.Loop.ChunkSize < 1 {
		errs = append(errs, "loop.chunkSize must be >= 1")
	}
	if cfg.Loop.ActiveDelayMs < 0 {
		errs = append(errs, "loop.activeDelayMs must be >= 0")
	}
	if cfg.Loop.IdleProbeSeconds < 1 {
		errs = append(errs, "loop.idleProbeSeconds must be >= 1")
	}
	if cfg.Loop.IdleAfterSeconds < 1 {
		errs = append(errs, "loop.idleAfterSeconds must be >= 1")
	}

	if cfg.Mail.PollLimit < 1 {
		errs = append(errs, "mail.pollLimit must be >= 1")
	}
	if cfg.Mail.PollIntervalSeconds < 1 {
		errs = append(errs, "mail.pollIntervalSeconds must be >= 1")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

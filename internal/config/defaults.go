package config

import "path/filepath"

// Defaults returns a config populated with working defaults. Load unmarshals
// the user's file on top of it, so absent keys keep these values.
func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			DataDir:     filepath.Join(dir, "memory"),
			LogLevel:    "info",
			CatalogPath: filepath.Join(dir, "endpoints.yaml"),
		},
		Service: ServiceConfig{
			APIKey: "${NOTION_KEY}",
		},
		Loop: LoopConfig{
			ChunkSize:        10,
			ActiveDelayMs:    500,
			IdleProbeSeconds: 5,
			IdleAfterSeconds: 60,
		},
		Mail: MailConfig{
			PollLimit:           25,
			PollIntervalSeconds: 5,
			SpoolDir:            filepath.Join(dir, "spool"),
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9090",
			Endpoint: "/metrics",
		},
	}
}

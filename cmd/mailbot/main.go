package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"mailbot/internal/config"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "mailbot",
		Short: "mailbot: SMS-over-email command bot",
		Long:  "mailbot ingests inbound text messages delivered as email, classifies them, and routes recognized commands to external datasources.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.mailbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(importCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}))
	return cfg, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, data directory, and a starter endpoint catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfg.General.CatalogPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfg.General.CatalogPath, []byte(starterCatalog), 0o644); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "data", cfg.General.DataDir, "catalog", cfg.General.CatalogPath)
			return nil
		},
	}
}

const starterCatalog = `# Endpoint catalog: one entry per external data collection.
endpoints:
  notion:
    type: datasource
    id: "${NOTION_DATABASE_ID}"
    description: "Personal tracking database"
    commands:
      add:
        required: [Name]
        optional:
          d: Date
        defaults:
          Date: "!today"
`

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailbot v%s (%s/%s, Go %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}

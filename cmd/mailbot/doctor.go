package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mailbot/internal/config"
	"mailbot/internal/domain"
	"mailbot/internal/notion"
	"mailbot/internal/schema"
	"mailbot/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, database, catalog, and service reachability",
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Printf("[x] %s: %v\n", name, err)
			return
		}
		fmt.Printf("[ok] %s\n", name)
	}

	cfg, err := loadConfig()
	check("config", err)
	if err != nil {
		return fmt.Errorf("%d check(s) failed", failed)
	}

	mailbox, err := store.Open(cfg.General.DataDir, logger)
	check("database", err)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pending, countErr := mailbox.CountInboxTypes(ctx, domain.TypeUnconfirmed, domain.TypeCommand)
		check("work count", countErr)
		if countErr == nil {
			fmt.Printf("     pending messages: %d\n", pending)
		}
		cancel()
		mailbox.Close()
	}

	catalog, err := config.LoadCatalog(cfg.General.CatalogPath)
	check("endpoint catalog", err)

	if catalog != nil {
		service := notion.NewClient(notion.ClientConfig{
			APIBase: cfg.Service.APIBase,
			APIKey:  cfg.Service.APIKey,
			Version: cfg.Service.Version,
			Logger:  logger,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		registry, err := schema.Load(ctx, catalog, service, logger)
		cancel()
		check("live schema", err)
		if registry != nil {
			fmt.Printf("     endpoints: %v\n", registry.Names())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("All checks passed.")
	return nil
}

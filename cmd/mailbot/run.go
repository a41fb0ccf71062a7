package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mailbot/internal/classify"
	"mailbot/internal/config"
	"mailbot/internal/fuzzy"
	"mailbot/internal/mail"
	"mailbot/internal/metrics"
	"mailbot/internal/notion"
	"mailbot/internal/proc"
	"mailbot/internal/router"
	"mailbot/internal/schema"
	"mailbot/internal/store"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the message lifecycle daemon",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailbox, err := store.Open(cfg.General.DataDir, logger)
	if err != nil {
		return err
	}
	defer mailbox.Close()

	catalog, err := config.LoadCatalog(cfg.General.CatalogPath)
	if err != nil {
		return err
	}

	service := notion.NewClient(notion.ClientConfig{
		APIBase: cfg.Service.APIBase,
		APIKey:  cfg.Service.APIKey,
		Version: cfg.Service.Version,
		Logger:  logger,
	})

	// Schema/configuration problems abort startup here, before any message
	// is touched.
	registry, err := schema.Load(ctx, catalog, service, logger)
	if err != nil {
		return err
	}

	collector := metrics.New()
	matcher := fuzzy.NewScorer()
	classifier := classify.New(matcher, logger)
	cmdRouter := router.New(router.Config{
		Registry: registry,
		Service:  service,
		Matcher:  matcher,
		Logger:   logger,
		Metrics:  collector,
	})

	loop := proc.NewLoop(proc.Config{
		Store:       mailbox,
		Classifier:  classifier,
		Router:      cmdRouter,
		Logger:      logger,
		Metrics:     collector,
		ChunkSize:   cfg.Loop.ChunkSize,
		ActiveDelay: time.Duration(cfg.Loop.ActiveDelayMs) * time.Millisecond,
		IdleProbe:   time.Duration(cfg.Loop.IdleProbeSeconds) * time.Second,
		IdleAfter:   time.Duration(cfg.Loop.IdleAfterSeconds) * time.Second,
	})

	spool, err := mail.NewSpool(cfg.Mail.SpoolDir, logger)
	if err != nil {
		return err
	}
	ingestor := mail.NewIngestor(mail.IngestorConfig{
		Source:   spool,
		Store:    mailbox,
		Logger:   logger,
		Metrics:  collector,
		Limit:    cfg.Mail.PollLimit,
		Interval: time.Duration(cfg.Mail.PollIntervalSeconds) * time.Second,
	})
	drainer := mail.NewDrainer(mail.DrainerConfig{
		Sink:     spool,
		Store:    mailbox,
		Logger:   logger,
		Metrics:  collector,
		Limit:    cfg.Mail.PollLimit,
		Interval: time.Duration(cfg.Mail.PollIntervalSeconds) * time.Second,
	})

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc(cfg.Metrics.Endpoint, collector.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Endpoint)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics endpoint failed", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	go ingestor.Run(ctx)
	go drainer.Run(ctx)

	err = loop.Run(ctx)
	stop()
	logger.Info("shutdown complete")
	return err
}

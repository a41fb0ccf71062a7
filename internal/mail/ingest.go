// Package mail runs the two store-facing gateway tasks: ingesting new
// messages from a MailSource into the inbox and draining drafted replies
// from the outbox into a MailSink. The transport behind both interfaces is
// an external collaborator.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mailbot/internal/domain"
	"mailbot/internal/metrics"
	"mailbot/internal/store"
)

// Ingestor polls the mail source and upserts normalized messages into the
// inbox. Upsert by msg_id makes at-least-once delivery harmless.
type Ingestor struct {
	source   domain.MailSource
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Collector
	limit    int
	interval time.Duration
	now      func() time.Time
}

type IngestorConfig struct {
	Source   domain.MailSource
	Store    *store.Store
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Limit    int
	Interval time.Duration
	Now      func() time.Time
}

func NewIngestor(cfg IngestorConfig) *Ingestor {
	if cfg.Limit <= 0 {
		cfg.Limit = 25
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Ingestor{
		source:   cfg.Source,
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		limit:    cfg.Limit,
		interval: cfg.Interval,
		now:      cfg.Now,
	}
}

// Run polls until the context is cancelled. Poll failures are logged and
// retried on the next tick, never fatal: the store keeps whatever made it in.
func (i *Ingestor) Run(ctx context.Context) {
	i.logger.Info("ingestor started", "interval", i.interval)
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		if err := i.PollOnce(ctx); err != nil {
			i.logger.Warn("ingest poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			i.logger.Info("ingestor stopping")
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches one bounded batch and writes it to the inbox in a single
// transaction. Records without a Message-ID get a generated one so the
// idempotency key stays total.
func (i *Ingestor) PollOnce(ctx context.Context) error {
	raws, err := i.source.PollNewMessages(ctx, i.limit)
	if err != nil {
		return fmt.Errorf("poll source: %w", err)
	}
	if len(raws) == 0 {
		return nil
	}

	seen := i.now()
	msgs := make([]domain.InboxMessage, 0, len(raws))
	for _, r := range raws {
		msgID := r.MsgID
		if msgID == "" {
			msgID = uuid.NewString()
			i.logger.Debug("assigned msg_id", "msg_id", msgID, "sender", r.Sender)
		}
		msgs = append(msgs, domain.InboxMessage{
			Content:     r.Content,
			TimeSent:    r.TimeSent,
			TimeSeen:    seen,
			Type:        domain.TypeUnconfirmed,
			Sender:      r.Sender,
			Subject:     r.Subject,
			MsgID:       msgID,
			ThreadID:    r.ThreadID,
			ExternalRef: r.ExternalRef,
		})
	}

	if err := i.store.UpsertInbox(ctx, msgs); err != nil {
		return fmt.Errorf("upsert inbox: %w", err)
	}
	i.metrics.Add(metrics.MessagesIngested, int64(len(msgs)))
	i.logger.Info("ingested messages", "count", len(msgs))
	return nil
}

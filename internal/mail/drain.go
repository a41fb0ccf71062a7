package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailbot/internal/domain"
	"mailbot/internal/metrics"
	"mailbot/internal/store"
)

// Drainer delivers drafted replies through the mail sink and deletes only the
// rows that were sent successfully; failed sends stay queued for the next
// pass.
type Drainer struct {
	sink     domain.MailSink
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Collector
	limit    int
	interval time.Duration
}

type DrainerConfig struct {
	Sink     domain.MailSink
	Store    *store.Store
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Limit    int
	Interval time.Duration
}

func NewDrainer(cfg DrainerConfig) *Drainer {
	if cfg.Limit <= 0 {
		cfg.Limit = 25
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Drainer{
		sink:     cfg.Sink,
		store:    cfg.Store,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		limit:    cfg.Limit,
		interval: cfg.Interval,
	}
}

// Run drains until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	d.logger.Info("outbox drainer started", "interval", d.interval)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.DrainOnce(ctx); err != nil {
			d.logger.Warn("outbox drain failed", "err", err)
		}
		select {
		case <-ctx.Done():
			d.logger.Info("outbox drainer stopping")
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce sends one bounded batch of drafted replies.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	drafts, err := d.store.SelectOutbox(ctx, d.limit)
	if err != nil {
		return fmt.Errorf("select outbox: %w", err)
	}
	if len(drafts) == 0 {
		return nil
	}

	var sent []string
	for _, m := range drafts {
		err := d.sink.SendReply(ctx, domain.Reply{
			To:        m.Sender,
			Content:   m.Content,
			Subject:   replySubject(m.Subject),
			InReplyTo: m.MsgID,
			ThreadID:  m.ThreadID,
		})
		if err != nil {
			d.logger.Warn("reply send failed, keeping in outbox", "msg_id", m.MsgID, "err", err)
			continue
		}
		sent = append(sent, m.MsgID)
		d.logger.Info("reply sent", "msg_id", m.MsgID, "to", m.Sender)
	}

	if err := d.store.DeleteOutbox(ctx, sent); err != nil {
		return fmt.Errorf("delete outbox: %w", err)
	}
	d.metrics.Add(metrics.RepliesSent, int64(len(sent)))
	return nil
}

func replySubject(subject string) string {
	if strings.HasPrefix(subject, "Re: ") {
		return subject
	}
	return "Re: " + subject
}

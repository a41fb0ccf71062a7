// Package proc drives the message lifecycle: a polling scheduler that
// alternates ACTIVE and INACTIVE cadence, pulling bounded chunks from the
// mailbox store through the classifier and router.
package proc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailbot/internal/classify"
	"mailbot/internal/domain"
	"mailbot/internal/metrics"
	"mailbot/internal/router"
	"mailbot/internal/store"
)

type State string

const (
	StateInactive State = "INACTIVE"
	StateActive   State = "ACTIVE"
)

// Loop is the process scheduler. Clock and sleep are injectable so the idle
// transition is testable with a simulated clock.
type Loop struct {
	store      *store.Store
	classifier *classify.Classifier
	router     *router.Router
	logger     *slog.Logger
	metrics    *metrics.Collector

	chunkSize   int
	activeDelay time.Duration
	idleProbe   time.Duration
	idleAfter   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Config struct {
	Store      *store.Store
	Classifier *classify.Classifier
	Router     *router.Router
	Logger     *slog.Logger
	Metrics    *metrics.Collector

	ChunkSize   int
	ActiveDelay time.Duration // yield between active iterations
	IdleProbe   time.Duration // probe cadence when there is no work
	IdleAfter   time.Duration // quiet time before dropping to INACTIVE

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewLoop(cfg Config) *Loop {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if cfg.ActiveDelay <= 0 {
		cfg.ActiveDelay = 500 * time.Millisecond
	}
	if cfg.IdleProbe <= 0 {
		cfg.IdleProbe = 5 * time.Second
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Loop{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		router:      cfg.Router,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		chunkSize:   cfg.ChunkSize,
		activeDelay: cfg.ActiveDelay,
		idleProbe:   cfg.IdleProbe,
		idleAfter:   cfg.IdleAfter,
		now:         cfg.Now,
		sleep:       cfg.Sleep,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes the scheduler until the context is cancelled or an unexpected
// error occurs. Store contention is absorbed (logged, then skipped); any
// other failure inside an iteration terminates the loop.
func (l *Loop) Run(ctx context.Context) error {
	state := StateInactive
	lastActivity := l.now()
	l.logger.Info("processor loop initialized", "chunk_size", l.chunkSize)

	for {
		if ctx.Err() != nil {
			l.logger.Info("processor loop stopping")
			return nil
		}

		count, err := l.store.CountInboxTypes(ctx, domain.TypeUnconfirmed, domain.TypeCommand)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, store.ErrBusy) {
				l.logger.Error("work count probe failed", "err", err)
				return fmt.Errorf("work count probe: %w", err)
			}
			l.metrics.Inc(metrics.StoreBusySkips)
			if err := l.sleep(ctx, l.idleProbe); err != nil {
				return nil
			}
			continue
		}

		if count == 0 {
			if state == StateActive && l.now().Sub(lastActivity) > l.idleAfter {
				state = StateInactive
				l.logger.Info("switching to INACTIVE mode")
			}
			if err := l.sleep(ctx, l.idleProbe); err != nil {
				return nil
			}
			continue
		}

		if state != StateActive {
			state = StateActive
			l.logger.Info("switching to ACTIVE mode", "pending", count)
		}

		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("processing pass failed", "err", err)
			return err
		}
		lastActivity = l.now()

		if err := l.sleep(ctx, l.activeDelay); err != nil {
			return nil
		}
	}
}

// runOnce performs one classify-then-route pass over bounded chunks.
func (l *Loop) runOnce(ctx context.Context) error {
	if err := l.classifyPass(ctx); err != nil {
		return err
	}
	return l.routePass(ctx)
}

func (l *Loop) classifyPass(ctx context.Context) error {
	batch, err := l.store.SelectInboxByType(ctx, domain.TypeUnconfirmed, l.chunkSize)
	if err != nil {
		return l.absorbBusy("classification select", err)
	}
	if len(batch) == 0 {
		return nil
	}

	changes := l.classifier.Classify(batch)
	if err := l.store.ApplyInboxChanges(ctx, changes); err != nil {
		return l.absorbBusy("classification apply", err)
	}

	for _, ch := range changes {
		switch {
		case ch.Delete:
			l.metrics.Inc(metrics.MessagesDiscarded)
		case ch.Type == domain.TypeChat:
			l.metrics.Inc(metrics.MessagesChat)
		case ch.Type == domain.TypeCommand:
			l.metrics.Inc(metrics.MessagesCommand)
		}
	}
	return nil
}

func (l *Loop) routePass(ctx context.Context) error {
	commands, err := l.store.SelectInboxByType(ctx, domain.TypeCommand, l.chunkSize)
	if err != nil {
		return l.absorbBusy("command select", err)
	}
	if len(commands) == 0 {
		return nil
	}

	replies := make([]domain.OutboxMessage, 0, len(commands))
	for _, msg := range commands {
		reply := l.router.Handle(ctx, msg.Content)
		if reply == "" {
			continue
		}
		replies = append(replies, domain.OutboxMessage{
			Content:     reply,
			TimeSent:    msg.TimeSent,
			Sender:      msg.Sender,
			Subject:     msg.Subject,
			MsgID:       msg.MsgID,
			ThreadID:    msg.ThreadID,
			ExternalRef: msg.ExternalRef,
		})
	}

	if err := l.store.DraftReplies(ctx, replies); err != nil {
		return l.absorbBusy("reply draft", err)
	}
	l.metrics.Add(metrics.RepliesDrafted, int64(len(replies)))
	return nil
}

// absorbBusy converts lock exhaustion into a logged skip; anything else is
// returned to fail the loop.
func (l *Loop) absorbBusy(op string, err error) error {
	if errors.Is(err, store.ErrBusy) {
		l.logger.Warn("store busy, skipping operation", "op", op)
		l.metrics.Inc(metrics.StoreBusySkips)
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

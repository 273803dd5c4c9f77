// Package worker drains queue topics with a fixed pool of goroutines,
// retrying transient failures through delayed redelivery.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/pkg/retry"
)

// Handler processes one message. A nil return acks the message; an error
// wrapped in retry.Permanent drops it immediately, any other error schedules
// a delayed redelivery until attempts run out.
type Handler func(ctx context.Context, msg queue.Message) error

// ExhaustedFunc is called once when a message is dropped, either because the
// failure was permanent or because all delivery attempts were used up.
type ExhaustedFunc func(ctx context.Context, msg queue.Message, err error)

// Config sizes a pool for a single topic.
type Config struct {
	Topic        string
	Size         int
	MaxAttempts  int
	PollInterval time.Duration
	Backoff      retry.Options
}

func (c *Config) defaults() {
	if c.Size <= 0 {
		c.Size = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// Pool consumes a single queue topic with Config.Size concurrent workers.
type Pool struct {
	cfg         Config
	q           queue.Queue
	handler     Handler
	onExhausted ExhaustedFunc
	logger      *slog.Logger
	metrics     *Metrics
}

func NewPool(cfg Config, q queue.Queue, handler Handler, onExhausted ExhaustedFunc, metrics *Metrics, logger *slog.Logger) *Pool {
	cfg.defaults()
	return &Pool{
		cfg:         cfg,
		q:           q,
		handler:     handler,
		onExhausted: onExhausted,
		logger:      logger.With("topic", cfg.Topic),
		metrics:     metrics,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight handlers to
// return. Messages claimed but unfinished at shutdown reappear after their
// lease expires.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool starting", "size", p.cfg.Size, "max_attempts", p.cfg.MaxAttempts)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.q.Receive(ctx, p.cfg.Topic)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				if !p.sleep(ctx, p.cfg.PollInterval) {
					return
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("receive failed", "error", err)
			if !p.sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}

		p.handle(ctx, *msg)
	}
}

func (p *Pool) handle(ctx context.Context, msg queue.Message) {
	p.metrics.inFlight.WithLabelValues(p.cfg.Topic).Inc()
	defer p.metrics.inFlight.WithLabelValues(p.cfg.Topic).Dec()

	start := time.Now()
	err := p.handler(ctx, msg)
	p.metrics.duration.WithLabelValues(p.cfg.Topic).Observe(time.Since(start).Seconds())

	if err == nil {
		if ackErr := p.q.Ack(ctx, msg.ID); ackErr != nil {
			// The message stays leased and will redeliver; handlers must
			// stay idempotent for exactly this case.
			p.logger.Error("ack failed", "message_id", msg.ID, "error", ackErr)
			return
		}
		p.metrics.processed.WithLabelValues(p.cfg.Topic).Inc()
		return
	}

	var perm *retry.Permanent
	permanent := errors.As(err, &perm)
	if permanent {
		err = perm.Err
	}

	if permanent || msg.Attempts >= p.cfg.MaxAttempts {
		p.metrics.failed.WithLabelValues(p.cfg.Topic).Inc()
		p.logger.Error("dropping message",
			"message_id", msg.ID,
			"attempts", msg.Attempts,
			"permanent", permanent,
			"error", err)
		if p.onExhausted != nil {
			p.onExhausted(ctx, msg, err)
		}
		if ackErr := p.q.Ack(ctx, msg.ID); ackErr != nil {
			p.logger.Error("ack of dropped message failed", "message_id", msg.ID, "error", ackErr)
		}
		return
	}

	delay := p.cfg.Backoff.Delay(msg.Attempts)
	p.metrics.retried.WithLabelValues(p.cfg.Topic).Inc()
	p.logger.Warn("message failed, scheduling redelivery",
		"message_id", msg.ID,
		"attempts", msg.Attempts,
		"delay", delay,
		"error", err)
	if nackErr := p.q.Nack(ctx, msg.ID, delay); nackErr != nil {
		p.logger.Error("nack failed", "message_id", msg.ID, "error", nackErr)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

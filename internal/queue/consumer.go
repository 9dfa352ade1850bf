package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
	"github.com/lokapay/settlement-engine/pkg/logger"
	"github.com/lokapay/settlement-engine/pkg/metrics"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultHandlerTimeout = 5 * time.Minute
	defaultStaleAfter     = 15 * time.Minute
)

// Handler processes a claimed sweep job. Implementations must be idempotent;
// the queue delivers at least once.
type Handler interface {
	Handle(ctx context.Context, job models.SweepJob) error
}

// jobStore is the repository surface the consumer uses.
type jobStore interface {
	ClaimNext(ctx context.Context, tx *gorm.DB, now time.Time) (*models.SweepJob, error)
	MarkCompleted(ctx context.Context, jobID uuid.UUID, now time.Time) error
	MarkFailed(ctx context.Context, job models.SweepJob, cause error, retryable bool, now time.Time) (bool, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConsumerParams configure the sweep queue consumer.
type ConsumerParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Store          jobStore
	Handler        Handler
	Metrics        *metrics.SettlementMetrics
	PollInterval   time.Duration
	HandlerTimeout time.Duration
	StaleAfter     time.Duration
}

// Consumer drains the sweep queue on a single goroutine, preserving enqueue
// order. Scaling out happens by adding worker processes, not goroutines; the
// claim query keeps replicas from double-processing.
type Consumer struct {
	logg           *logger.Logger
	db             txRunner
	store          jobStore
	handler        Handler
	metrics        *metrics.SettlementMetrics
	pollInterval   time.Duration
	handlerTimeout time.Duration
	staleAfter     time.Duration
	now            func() time.Time
}

// NewConsumer builds a queue consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("job store required")
	}
	if params.Handler == nil {
		return nil, fmt.Errorf("handler required")
	}
	pollInterval := params.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	handlerTimeout := params.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = defaultHandlerTimeout
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Consumer{
		logg:           params.Logger,
		db:             params.DB,
		store:          params.Store,
		handler:        params.Handler,
		metrics:        params.Metrics,
		pollInterval:   pollInterval,
		handlerTimeout: handlerTimeout,
		staleAfter:     staleAfter,
		now:            time.Now,
	}, nil
}

// Run polls the queue until the context is canceled. Jobs already queued at
// startup are drained before the first tick.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.runPoll(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logg.Info(ctx, "sweep consumer context canceled")
			return ctx.Err()
		case <-ticker.C:
			c.runPoll(ctx)
		}
	}
}

func (c *Consumer) runPoll(ctx context.Context) {
	if reclaimed, err := c.store.ReclaimStale(ctx, c.staleAfter, c.now()); err != nil {
		c.logg.Error(ctx, "failed to reclaim stale jobs", err)
	} else if reclaimed > 0 {
		c.logg.Info(c.logg.WithField(ctx, "reclaimed", reclaimed), "returned stale jobs to the queue")
	}

	for {
		processed, err := c.processNext(ctx)
		if err != nil {
			c.logg.Error(ctx, "sweep job processing error", err)
			return
		}
		if !processed {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// processNext claims and handles a single job. It reports whether a job was
// found.
func (c *Consumer) processNext(ctx context.Context) (bool, error) {
	var job *models.SweepJob
	err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, claimErr := c.store.ClaimNext(ctx, tx, c.now())
		if claimErr != nil {
			return claimErr
		}
		job = claimed
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	jobCtx := c.logg.WithJobID(ctx, job.ID.String())
	jobCtx = c.logg.WithInvoiceID(jobCtx, job.InvoiceID.String())
	jobCtx = c.logg.WithField(jobCtx, "attempt", job.AttemptCount)

	handleCtx, cancel := context.WithTimeout(jobCtx, c.handlerTimeout)
	handleErr := c.handler.Handle(handleCtx, *job)
	cancel()

	if handleErr == nil {
		if err := c.store.MarkCompleted(ctx, job.ID, c.now()); err != nil {
			return true, fmt.Errorf("marking job completed: %w", err)
		}
		c.logg.Info(jobCtx, "sweep job completed")
		return true, nil
	}

	retryable := pkgErrors.Retryable(handleErr)
	dead, err := c.store.MarkFailed(ctx, *job, handleErr, retryable, c.now())
	if err != nil {
		return true, fmt.Errorf("marking job failed: %w", err)
	}
	if dead {
		c.metrics.IncDeadLetters()
		c.logg.Error(c.logg.WithField(jobCtx, "dead_letter", true), "sweep job dead-lettered", handleErr)
		return true, nil
	}
	c.logg.Error(jobCtx, "sweep job failed; will retry", handleErr)
	return true, nil
}

package cron

import (
	"context"
	"fmt"

	"github.com/lokapay/settlement-engine/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultKeepCompleted = 100
	defaultKeepDead      = 500
)

// txRunner runs a closure inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type queueRetentionRepo interface {
	PruneFinished(ctx context.Context, tx *gorm.DB, keepCompleted, keepDead int) (int64, error)
}

type QueueRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    queueRetentionRepo
	KeepCompleted int
	KeepDead      int
}

// NewQueueRetentionJob prunes finished sweep jobs, keeping a bounded history
// of completed and dead rows for inspection.
func NewQueueRetentionJob(params QueueRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("queue repository required")
	}
	keepCompleted := params.KeepCompleted
	if keepCompleted <= 0 {
		keepCompleted = defaultKeepCompleted
	}
	keepDead := params.KeepDead
	if keepDead <= 0 {
		keepDead = defaultKeepDead
	}
	return &queueRetentionJob{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		keepCompleted: keepCompleted,
		keepDead:      keepDead,
	}, nil
}

type queueRetentionJob struct {
	logg          *logger.Logger
	db            txRunner
	repo          queueRetentionRepo
	keepCompleted int
	keepDead      int
}

func (j *queueRetentionJob) Name() string { return "sweep-queue-retention" }

func (j *queueRetentionJob) Run(ctx context.Context) error {
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.PruneFinished(ctx, tx, j.keepCompleted, j.keepDead)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"keep_completed": j.keepCompleted,
		"keep_dead":      j.keepDead,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "sweep queue retention complete")
	return nil
}

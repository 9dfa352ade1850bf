package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/lokapay/settlement-engine/pkg/logger"
	"gorm.io/gorm"
)

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeQueueRetentionRepo struct {
	keepCompleted int
	keepDead      int
	called        int
	err           error
}

func (f *fakeQueueRetentionRepo) PruneFinished(ctx context.Context, tx *gorm.DB, keepCompleted, keepDead int) (int64, error) {
	f.called++
	f.keepCompleted = keepCompleted
	f.keepDead = keepDead
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestQueueRetentionJobUsesDefaults(t *testing.T) {
	repo := &fakeQueueRetentionRepo{}
	job, err := NewQueueRetentionJob(QueueRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         passthroughTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewQueueRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.keepCompleted != defaultKeepCompleted || repo.keepDead != defaultKeepDead {
		t.Fatalf("expected defaults %d/%d, got %d/%d",
			defaultKeepCompleted, defaultKeepDead, repo.keepCompleted, repo.keepDead)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestQueueRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeQueueRetentionRepo{err: errors.New("boom")}
	job, err := NewQueueRetentionJob(QueueRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         passthroughTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewQueueRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

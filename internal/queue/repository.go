package queue

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lokapay/settlement-engine/pkg/db"
	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 30 * time.Second
)

var liveStatuses = []enums.SweepJobStatus{
	enums.SweepJobStatusPending,
	enums.SweepJobStatusProcessing,
	enums.SweepJobStatusFailed,
}

var claimableStatuses = []enums.SweepJobStatus{
	enums.SweepJobStatusPending,
	enums.SweepJobStatusFailed,
}

// RepositoryParams configure the sweep job repository.
type RepositoryParams struct {
	DB          *gorm.DB
	MaxAttempts int
	BackoffBase time.Duration
}

// Repository persists sweep jobs. The table doubles as the work queue:
// pending rows ordered by creation time are the FIFO, and row locks make
// claiming safe across worker replicas.
type Repository struct {
	db          *gorm.DB
	maxAttempts int
	backoffBase time.Duration
}

// NewRepository builds a sweep job repository.
func NewRepository(params RepositoryParams) (*Repository, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := params.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	return &Repository{
		db:          params.DB,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}, nil
}

// Enqueue inserts a pending job for the invoice inside the caller's
// transaction and reports whether a row was created. An invoice with a live
// job is left untouched; the partial unique index backstops concurrent
// enqueuers.
func (r *Repository) Enqueue(ctx context.Context, tx *gorm.DB, job models.SweepJob) (bool, error) {
	if tx == nil {
		return false, stdErrors.New("transaction required")
	}
	var count int64
	err := tx.WithContext(ctx).Model(&models.SweepJob{}).
		Where("invoice_id = ? AND status IN ?", job.InvoiceID, liveStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking live jobs: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	job.Status = enums.SweepJobStatusPending
	if job.NextRunAt.IsZero() {
		job.NextRunAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(&job).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, fmt.Errorf("enqueueing sweep job: %w", err)
	}
	return true, nil
}

// ClaimNext locks and claims the oldest due pending job, moving it to
// processing. It returns nil when the queue is empty.
func (r *Repository) ClaimNext(ctx context.Context, tx *gorm.DB, now time.Time) (*models.SweepJob, error) {
	if tx == nil {
		return nil, stdErrors.New("transaction required")
	}
	query := tx.WithContext(ctx).
		Where("status IN ? AND next_run_at <= ?", claimableStatuses, now.UTC()).
		Order("created_at ASC").
		Limit(1)
	// sqlite (used by the tests) has no row locks; claims there are already
	// serialized by the database itself.
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var job models.SweepJob
	if err := query.First(&job).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("claiming sweep job: %w", err)
	}

	job.Status = enums.SweepJobStatusProcessing
	job.AttemptCount++
	err := tx.WithContext(ctx).Model(&models.SweepJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":        enums.SweepJobStatusProcessing,
			"attempt_count": job.AttemptCount,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("marking job processing: %w", err)
	}
	return &job, nil
}

// MarkCompleted finalizes a successfully handled job.
func (r *Repository) MarkCompleted(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.SweepJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":       enums.SweepJobStatusCompleted,
			"completed_at": now.UTC(),
		}).Error
}

// MarkFailed records a handler failure. Retryable failures are requeued with
// exponential backoff until attempts are exhausted; non-retryable
// failures and exhausted jobs go straight to the dead-letter state. It
// reports whether the job was dead-lettered.
func (r *Repository) MarkFailed(ctx context.Context, job models.SweepJob, cause error, retryable bool, now time.Time) (bool, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	if !retryable || job.AttemptCount >= r.maxAttempts {
		err := r.db.WithContext(ctx).Model(&models.SweepJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":     enums.SweepJobStatusDead,
				"last_error": message,
			}).Error
		if err != nil {
			return false, fmt.Errorf("dead-lettering job: %w", err)
		}
		return true, nil
	}

	// Failed rows are claimed again once their backoff elapses.
	delay := retryDelay(r.backoffBase, job.AttemptCount)
	err := r.db.WithContext(ctx).Model(&models.SweepJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":      enums.SweepJobStatusFailed,
			"last_error":  message,
			"next_run_at": now.UTC().Add(delay),
		}).Error
	if err != nil {
		return false, fmt.Errorf("recording job failure: %w", err)
	}
	return false, nil
}

// ReclaimStale returns jobs stuck in processing (a worker crashed mid-handle)
// to the pending state so another claim can pick them up.
func (r *Repository) ReclaimStale(ctx context.Context, olderThan time.Duration, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-olderThan)
	result := r.db.WithContext(ctx).Model(&models.SweepJob{}).
		Where("status = ? AND updated_at < ?", enums.SweepJobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":      enums.SweepJobStatusPending,
			"next_run_at": now.UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("reclaiming stale jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PruneFinished deletes completed and dead jobs beyond the retention counts,
// newest kept first.
func (r *Repository) PruneFinished(ctx context.Context, tx *gorm.DB, keepCompleted, keepDead int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	completed, err := r.pruneStatus(ctx, tx, enums.SweepJobStatusCompleted, keepCompleted)
	if err != nil {
		return total, err
	}
	total += completed
	dead, err := r.pruneStatus(ctx, tx, enums.SweepJobStatusDead, keepDead)
	if err != nil {
		return total, err
	}
	total += dead
	return total, nil
}

func (r *Repository) pruneStatus(ctx context.Context, tx *gorm.DB, status enums.SweepJobStatus, keep int) (int64, error) {
	var ids []uuid.UUID
	err := tx.WithContext(ctx).Model(&models.SweepJob{}).
		Where("status = ?", status).
		Order("updated_at DESC").
		Offset(keep).
		Limit(-1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("listing %s jobs to prune: %w", status, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).Where("id IN ?", ids).Delete(&models.SweepJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("pruning %s jobs: %w", status, result.Error)
	}
	return result.RowsAffected, nil
}

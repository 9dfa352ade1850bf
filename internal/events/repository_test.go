package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  published_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

func newOutboxEvent(createdAt time.Time) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventInvoiceSettled,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     createdAt,
	}
}

func TestFetchUnpublishedOrdersAndCapsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo, err := NewRepository(db)
	require.NoError(t, err)
	now := time.Now().UTC()

	older := newOutboxEvent(now.Add(-2 * time.Minute))
	newer := newOutboxEvent(now.Add(-1 * time.Minute))
	exhausted := newOutboxEvent(now.Add(-3 * time.Minute))
	exhausted.AttemptCount = 10

	require.NoError(t, repo.Insert(db, newer))
	require.NoError(t, repo.Insert(db, older))
	require.NoError(t, repo.Insert(db, exhausted))

	rows, err := repo.FetchUnpublished(db, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "exhausted events must not be fetched")
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, newer.ID, rows[1].ID)
}

func TestMarkPublishedExcludesFromFetch(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo, err := NewRepository(db)
	require.NoError(t, err)

	event := newOutboxEvent(time.Now().UTC())
	require.NoError(t, repo.Insert(db, event))
	require.NoError(t, repo.MarkPublished(db, event.ID))

	rows, err := repo.FetchUnpublished(db, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkFailedIncrementsAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo, err := NewRepository(db)
	require.NoError(t, err)

	event := newOutboxEvent(time.Now().UTC())
	require.NoError(t, repo.Insert(db, event))
	require.NoError(t, repo.MarkFailed(db, event.ID, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailed(db, event.ID, errors.New("publish timeout")))

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "publish timeout", *stored.LastError)
}

func TestDeletePublishedBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo, err := NewRepository(db)
	require.NoError(t, err)
	now := time.Now().UTC()

	old := newOutboxEvent(now.Add(-48 * time.Hour))
	recent := newOutboxEvent(now)
	unpublished := newOutboxEvent(now.Add(-48 * time.Hour))
	require.NoError(t, repo.Insert(db, old))
	require.NoError(t, repo.Insert(db, recent))
	require.NoError(t, repo.Insert(db, unpublished))

	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("id = ?", old.ID).Update("published_at", now.Add(-47*time.Hour)).Error)
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("id = ?", recent.ID).Update("published_at", now).Error)

	deleted, err := repo.DeletePublishedBefore(context.Background(), db, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "unpublished rows are never pruned")
}

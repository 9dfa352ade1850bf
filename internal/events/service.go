package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
	"github.com/lokapay/settlement-engine/pkg/logger"
)

// DomainEvent describes a settlement notification to be written to the
// outbox.
type DomainEvent struct {
	EventType   enums.OutboxEventType
	AggregateID uuid.UUID
	Data        interface{}
	Version     int
	OccurredAt  time.Time
}

// Service writes settlement events to the outbox so they are committed
// atomically with the state change they describe.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds an outbox event service.
func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit stores the event inside the caller's transaction.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Version <= 0 {
		event.Version = 1
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Data:       payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(payloadJSON),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		})
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}

// EmitInvoiceSettled queues an invoice.settled notification.
func (s *Service) EmitInvoiceSettled(ctx context.Context, tx *gorm.DB, data InvoiceSettledData) error {
	return s.Emit(ctx, tx, DomainEvent{
		EventType:   enums.EventInvoiceSettled,
		AggregateID: data.InvoiceID,
		Data:        data,
		OccurredAt:  data.SettledAt,
	})
}

// EmitInvoiceSwept queues an invoice.swept notification.
func (s *Service) EmitInvoiceSwept(ctx context.Context, tx *gorm.DB, data InvoiceSweptData) error {
	return s.Emit(ctx, tx, DomainEvent{
		EventType:   enums.EventInvoiceSwept,
		AggregateID: data.InvoiceID,
		Data:        data,
		OccurredAt:  data.SweptAt,
	})
}

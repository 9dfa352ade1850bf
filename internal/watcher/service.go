package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/internal/events"
	"github.com/lokapay/settlement-engine/internal/invoices"
	"github.com/lokapay/settlement-engine/pkg/config"
	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
	"github.com/lokapay/settlement-engine/pkg/logger"
	"github.com/lokapay/settlement-engine/pkg/metrics"
)

// appFeeRate is the platform fee recorded against every settled invoice. The
// fee is bookkeeping only; it is not subtracted from the merchant credit.
var appFeeRate = decimal.RequireFromString("0.015")

// balanceReader reads stablecoin balances at deposit addresses.
type balanceReader interface {
	TokenBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// invoiceStore is the invoice repository surface the watcher uses.
type invoiceStore interface {
	ListScannable(ctx context.Context) ([]models.Invoice, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Invoice, error)
	ApplySettlement(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, update invoices.SettlementUpdate) error
}

type merchantStore interface {
	IncrementBalance(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, amount decimal.Decimal) error
}

type ledgerStore interface {
	Insert(ctx context.Context, tx *gorm.DB, events ...models.SettlementEvent) error
}

type outboxEmitter interface {
	EmitInvoiceSettled(ctx context.Context, tx *gorm.DB, data events.InvoiceSettledData) error
}

type sweepEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, job models.SweepJob) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the watcher.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Chain     balanceReader
	Invoices  invoiceStore
	Merchants merchantStore
	Ledger    ledgerStore
	Outbox    outboxEmitter
	Queue     sweepEnqueuer
	Metrics   *metrics.SettlementMetrics
	Config    config.WatcherConfig
}

// Service reconciles observed deposit balances against expected invoice
// amounts and settles invoices as funds arrive.
type Service struct {
	logg      *logger.Logger
	db        txRunner
	chain     balanceReader
	invoices  invoiceStore
	merchants merchantStore
	ledger    ledgerStore
	outbox    outboxEmitter
	queue     sweepEnqueuer
	metrics   *metrics.SettlementMetrics

	dust  decimal.Decimal
	under decimal.Decimal
	over  decimal.Decimal

	now func() time.Time
}

// NewService builds the watcher.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Chain == nil {
		return nil, fmt.Errorf("chain reader required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("sweep queue required")
	}
	return &Service{
		logg:      params.Logger,
		db:        params.DB,
		chain:     params.Chain,
		invoices:  params.Invoices,
		merchants: params.Merchants,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		queue:     params.Queue,
		metrics:   params.Metrics,
		dust:      params.Config.Dust(),
		under:     params.Config.Under(),
		over:      params.Config.Over(),
		now:       time.Now,
	}, nil
}

// ReconcileOpenInvoices runs one scan pass. A failure on one invoice is
// isolated: it is logged and counted, and the scan moves on.
func (s *Service) ReconcileOpenInvoices(ctx context.Context) error {
	invoices, err := s.invoices.ListScannable(ctx)
	if err != nil {
		return fmt.Errorf("listing invoices: %w", err)
	}

	var settled, failed int
	for _, invoice := range invoices {
		invCtx := s.logg.WithInvoiceID(ctx, invoice.ID.String())
		invCtx = s.logg.WithAddress(invCtx, invoice.DepositAddress)

		didSettle, err := s.reconcileInvoice(invCtx, invoice)
		if err != nil {
			failed++
			s.metrics.IncScanErrors()
			s.logg.Error(invCtx, "invoice reconciliation failed", err)
			continue
		}
		if didSettle {
			settled++
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned": len(invoices),
		"settled": settled,
		"errors":  failed,
	})
	s.logg.Info(logCtx, "scan pass complete")
	return nil
}

// reconcileInvoice inspects one invoice and reports whether it reached a
// final status during this pass.
func (s *Service) reconcileInvoice(ctx context.Context, invoice models.Invoice) (bool, error) {
	// Settled invoices only need their sweep scheduled; a missed enqueue from
	// a crashed cycle is repaired here.
	if invoice.Status.IsFinal() {
		return false, s.ensureSweepScheduled(ctx, invoice)
	}

	balance, err := s.chain.TokenBalance(ctx, invoice.DepositAddress)
	if err != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDependency, err, "reading deposit balance")
	}
	if balance.LessThan(s.dust) {
		return false, nil
	}
	if balance.LessThanOrEqual(invoice.AmountReceivedToken) {
		// Observed balances never reduce what was already recorded.
		return false, nil
	}
	// Deposits arriving after expiry are still honored.
	if s.now().UTC().After(invoice.ExpiresAt) {
		s.logg.Warn(ctx, "late payment on expired invoice")
	}

	var didSettle bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.invoices.GetForUpdate(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		// Re-check against the locked row: another cycle may have settled the
		// invoice between the list and the lock.
		if locked.Status.IsFinal() {
			return nil
		}
		if balance.LessThanOrEqual(locked.AmountReceivedToken) {
			return nil
		}

		outcome := s.assess(*locked, balance)
		if !locked.Status.CanTransitionTo(outcome.Status) {
			return pkgErrors.New(pkgErrors.CodeStateConflict,
				fmt.Sprintf("invoice %s cannot move %s -> %s", locked.ID, locked.Status, outcome.Status))
		}

		update := invoices.SettlementUpdate{
			ReceivedToken: outcome.ReceivedToken,
			ReceivedFiat:  outcome.ReceivedFiat,
			TipFiat:       outcome.TipFiat,
			AppFee:        outcome.AppFee,
			Status:        outcome.Status,
		}
		if outcome.Settles {
			settledAt := s.now().UTC()
			update.SettledAt = &settledAt
		}
		if err := s.invoices.ApplySettlement(ctx, tx, locked.ID, update); err != nil {
			return err
		}
		if !outcome.Settles {
			return nil
		}

		// At most one credit per invoice: we only get here when the locked
		// row was not yet final, and the final status is terminal.
		if err := s.settle(ctx, tx, *locked, outcome, *update.SettledAt); err != nil {
			return err
		}
		didSettle = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if didSettle {
		s.metrics.IncCredits()
		s.logg.Info(ctx, "invoice settled and merchant credited")
	}
	return didSettle, nil
}

// settle credits the merchant, records ledger events, queues the settlement
// notification, and schedules the sweep, all inside the same transaction as
// the status change.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, invoice models.Invoice, outcome reconcileOutcome, settledAt time.Time) error {
	credit := invoice.AmountFiat.Add(outcome.TipFiat)
	if err := s.merchants.IncrementBalance(ctx, tx, invoice.MerchantID, credit); err != nil {
		return err
	}

	ledgerEvents := []models.SettlementEvent{{
		InvoiceID:  invoice.ID,
		MerchantID: invoice.MerchantID,
		Type:       enums.SettlementEventCredit,
		AmountFiat: invoice.AmountFiat,
	}}
	if outcome.TipFiat.IsPositive() {
		ledgerEvents = append(ledgerEvents, models.SettlementEvent{
			InvoiceID:  invoice.ID,
			MerchantID: invoice.MerchantID,
			Type:       enums.SettlementEventTip,
			AmountFiat: outcome.TipFiat,
		})
	}
	if err := s.ledger.Insert(ctx, tx, ledgerEvents...); err != nil {
		return err
	}

	if err := s.outbox.EmitInvoiceSettled(ctx, tx, events.InvoiceSettledData{
		InvoiceID:    invoice.ID,
		MerchantID:   invoice.MerchantID,
		Status:       outcome.Status,
		AmountFiat:   invoice.AmountFiat,
		ReceivedFiat: outcome.ReceivedFiat,
		TipFiat:      outcome.TipFiat,
		AppFee:       outcome.AppFee,
		SettledAt:    settledAt,
	}); err != nil {
		return err
	}

	enqueued, err := s.queue.Enqueue(ctx, tx, models.SweepJob{
		InvoiceID:      invoice.ID,
		DepositAddress: invoice.DepositAddress,
		Salt:           invoice.Salt,
		NextRunAt:      settledAt,
	})
	if err != nil {
		return err
	}
	if enqueued {
		s.metrics.IncEnqueued()
	}
	return nil
}

// ensureSweepScheduled repairs a settled invoice that has no sweep recorded
// and no live job in the queue.
func (s *Service) ensureSweepScheduled(ctx context.Context, invoice models.Invoice) error {
	if invoice.SweptAt != nil {
		return nil
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		enqueued, err := s.queue.Enqueue(ctx, tx, models.SweepJob{
			InvoiceID:      invoice.ID,
			DepositAddress: invoice.DepositAddress,
			Salt:           invoice.Salt,
			NextRunAt:      s.now().UTC(),
		})
		if err != nil {
			return err
		}
		if enqueued {
			s.metrics.IncEnqueued()
			s.logg.Info(ctx, "re-scheduled sweep for settled invoice")
		}
		return nil
	})
}

// reconcileOutcome is the result of comparing an observed balance with the
// invoice's expected amount.
type reconcileOutcome struct {
	Status        enums.InvoiceStatus
	ReceivedToken decimal.Decimal
	ReceivedFiat  decimal.Decimal
	TipFiat       decimal.Decimal
	AppFee        decimal.Decimal
	Settles       bool
}

// assess classifies the observed balance into the tolerance bands. The fiat
// conversion floors at cents so rounding can never credit more than was
// received.
func (s *Service) assess(invoice models.Invoice, balance decimal.Decimal) reconcileOutcome {
	receivedFiat := balance.Mul(invoice.ExchangeRate).RoundFloor(2)
	outcome := reconcileOutcome{
		ReceivedToken: balance,
		ReceivedFiat:  receivedFiat,
		TipFiat:       decimal.Zero,
		AppFee:        invoice.AppFee,
	}

	expected := invoice.AmountToken
	switch {
	case balance.LessThan(expected.Sub(s.under)):
		outcome.Status = enums.InvoiceStatusPartiallyPaid
	case balance.LessThanOrEqual(expected.Add(s.over)):
		outcome.Status = enums.InvoiceStatusPaid
		outcome.Settles = true
	default:
		outcome.Status = enums.InvoiceStatusOverpaid
		outcome.Settles = true
		// The tip is the excess over the expected token amount, converted at
		// the invoice rate. The spread between amount_fiat and the token
		// amount is never paid out.
		if tip := balance.Sub(expected).Mul(invoice.ExchangeRate).RoundFloor(2); tip.IsPositive() {
			outcome.TipFiat = tip
		}
	}

	if outcome.Settles {
		outcome.AppFee = invoice.AmountFiat.Mul(appFeeRate).Round(2)
	}
	return outcome
}

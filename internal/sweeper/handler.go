package sweeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lokapay/settlement-engine/internal/events"
	"github.com/lokapay/settlement-engine/pkg/config"
	"github.com/lokapay/settlement-engine/pkg/db/models"
	"github.com/lokapay/settlement-engine/pkg/enums"
	pkgErrors "github.com/lokapay/settlement-engine/pkg/errors"
	"github.com/lokapay/settlement-engine/pkg/logger"
	"github.com/lokapay/settlement-engine/pkg/metrics"
)

// deployHeadroom is the safety multiplier applied to the estimated deploy
// cost before committing the operator wallet to it.
var deployHeadroom = decimal.NewFromInt(2)

// chainClient is the on-chain surface the sweep handler uses.
type chainClient interface {
	OperatorBalance(ctx context.Context) (decimal.Decimal, error)
	CodeExists(ctx context.Context, address string) (bool, error)
	VaultAddress(ctx context.Context, salt string) (string, error)
	EstimateDeployCost(ctx context.Context, salt string) (decimal.Decimal, error)
	DeployVault(ctx context.Context, salt string) (*gethtypes.Transaction, error)
	TokenBalance(ctx context.Context, address string) (decimal.Decimal, error)
	EstimateSweep(ctx context.Context, vaultAddress string) error
	SweepVault(ctx context.Context, vaultAddress string) (*gethtypes.Transaction, error)
	WaitMined(ctx context.Context, tx *gethtypes.Transaction) error
}

// invoiceStore is the invoice repository surface the handler uses.
type invoiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	MarkDeployed(ctx context.Context, invoiceID uuid.UUID) error
	MarkSwept(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, txHash *string, sweptAt time.Time) (bool, error)
}

type ledgerStore interface {
	Insert(ctx context.Context, tx *gorm.DB, events ...models.SettlementEvent) error
}

type outboxEmitter interface {
	EmitInvoiceSwept(ctx context.Context, tx *gorm.DB, data events.InvoiceSweptData) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HandlerParams configure the sweep handler.
type HandlerParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Chain    chainClient
	Invoices invoiceStore
	Ledger   ledgerStore
	Outbox   outboxEmitter
	Metrics  *metrics.SettlementMetrics
	Config   config.ChainConfig
}

// Handler executes sweep jobs: it provisions the invoice's custody vault if
// needed and moves the vault's token balance to the hot wallet. Every step is
// idempotent; the queue may deliver the same job more than once.
type Handler struct {
	logg     *logger.Logger
	db       txRunner
	chain    chainClient
	invoices invoiceStore
	ledger   ledgerStore
	outbox   outboxEmitter
	metrics  *metrics.SettlementMetrics

	minGas         decimal.Decimal
	confirmTimeout time.Duration
	now            func() time.Time
}

// NewHandler builds a sweep handler.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Chain == nil {
		return nil, fmt.Errorf("chain client required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	confirmTimeout := params.Config.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 3 * time.Minute
	}
	return &Handler{
		logg:           params.Logger,
		db:             params.DB,
		chain:          params.Chain,
		invoices:       params.Invoices,
		ledger:         params.Ledger,
		outbox:         params.Outbox,
		metrics:        params.Metrics,
		minGas:         params.Config.MinGas(),
		confirmTimeout: confirmTimeout,
		now:            time.Now,
	}, nil
}

// Handle processes one sweep job.
func (h *Handler) Handle(ctx context.Context, job models.SweepJob) error {
	invoice, err := h.invoices.GetByID(ctx, job.InvoiceID)
	if err != nil {
		return err
	}
	if invoice.SweptAt != nil {
		h.logg.Info(ctx, "invoice already swept; nothing to do")
		return nil
	}

	// Gas preflight. A drained operator wallet pauses sweeping rather than
	// burning retry attempts: the job completes and the watcher re-schedules
	// the sweep on a later scan.
	operatorBalance, err := h.chain.OperatorBalance(ctx)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "reading operator balance")
	}
	if operatorBalance.LessThan(h.minGas) {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"operator_balance": operatorBalance.String(),
			"min_gas":          h.minGas.String(),
		})
		h.logg.Warn(logCtx, "operator gas below threshold; deferring sweep")
		return nil
	}

	if err := h.ensureVaultDeployed(ctx, *invoice, operatorBalance); err != nil {
		if pkgErrors.As(err) != nil && pkgErrors.As(err).Code() == pkgErrors.CodeInsufficientGas {
			h.logg.Warn(h.logg.WithField(ctx, "reason", err.Error()), "deferring sweep until operator is funded")
			return nil
		}
		return err
	}

	balance, err := h.chain.TokenBalance(ctx, invoice.DepositAddress)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "reading vault balance")
	}
	if balance.IsZero() {
		// Nothing to move; close out the invoice so it stops being scanned.
		h.logg.Info(ctx, "vault is empty; marking invoice swept")
		return h.finalizeSweep(ctx, *invoice, nil)
	}

	if err := h.chain.EstimateSweep(ctx, invoice.DepositAddress); err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeSimulation, err, "sweep simulation predicted a revert")
	}

	tx, err := h.chain.SweepVault(ctx, invoice.DepositAddress)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "submitting sweep")
	}
	if err := h.waitMined(ctx, tx); err != nil {
		return err
	}

	txHash := tx.Hash().Hex()
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"tx_hash": txHash,
		"balance": balance.String(),
	})
	h.logg.Info(logCtx, "vault swept to hot wallet")
	return h.finalizeSweep(ctx, *invoice, &txHash)
}

// ensureVaultDeployed deploys the custody vault when no code exists at the
// deposit address. Deployment is skipped entirely when the operator cannot
// cover twice the estimated cost.
func (h *Handler) ensureVaultDeployed(ctx context.Context, invoice models.Invoice, operatorBalance decimal.Decimal) error {
	exists, err := h.chain.CodeExists(ctx, invoice.DepositAddress)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "checking vault code")
	}
	if exists {
		if !invoice.IsDeployed {
			if err := h.invoices.MarkDeployed(ctx, invoice.ID); err != nil {
				return err
			}
		}
		return nil
	}

	predicted, err := h.chain.VaultAddress(ctx, invoice.Salt)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "predicting vault address")
	}
	if !equalAddress(predicted, invoice.DepositAddress) {
		return pkgErrors.New(pkgErrors.CodeValidation,
			fmt.Sprintf("factory derives %s for invoice %s, expected %s", predicted, invoice.ID, invoice.DepositAddress))
	}

	cost, err := h.chain.EstimateDeployCost(ctx, invoice.Salt)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "estimating vault deployment")
	}
	if operatorBalance.LessThan(cost.Mul(deployHeadroom)) {
		return pkgErrors.New(pkgErrors.CodeInsufficientGas,
			fmt.Sprintf("deploy needs %s native with headroom, operator holds %s", cost.Mul(deployHeadroom), operatorBalance))
	}

	tx, err := h.chain.DeployVault(ctx, invoice.Salt)
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "deploying vault")
	}
	if err := h.waitMined(ctx, tx); err != nil {
		return err
	}
	if err := h.invoices.MarkDeployed(ctx, invoice.ID); err != nil {
		return err
	}
	h.logg.Info(h.logg.WithField(ctx, "tx_hash", tx.Hash().Hex()), "vault deployed")
	return nil
}

// finalizeSweep stamps the sweep on the invoice, records the ledger event,
// and queues the notification atomically. A row already stamped by an earlier
// delivery is left untouched.
func (h *Handler) finalizeSweep(ctx context.Context, invoice models.Invoice, txHash *string) error {
	sweptAt := h.now().UTC()
	var stamped bool
	err := h.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		stamped, err = h.invoices.MarkSwept(ctx, tx, invoice.ID, txHash, sweptAt)
		if err != nil {
			return err
		}
		if !stamped {
			return nil
		}
		if err := h.ledger.Insert(ctx, tx, models.SettlementEvent{
			InvoiceID:  invoice.ID,
			MerchantID: invoice.MerchantID,
			Type:       enums.SettlementEventSweep,
		}); err != nil {
			return err
		}
		data := events.InvoiceSweptData{
			InvoiceID:  invoice.ID,
			MerchantID: invoice.MerchantID,
			SweptAt:    sweptAt,
		}
		if txHash != nil {
			data.TxHash = *txHash
		}
		return h.outbox.EmitInvoiceSwept(ctx, tx, data)
	})
	if err != nil {
		return err
	}
	if stamped {
		h.metrics.IncSweeps()
	}
	return nil
}

func (h *Handler) waitMined(ctx context.Context, tx *gethtypes.Transaction) error {
	waitCtx, cancel := context.WithTimeout(ctx, h.confirmTimeout)
	defer cancel()
	if err := h.chain.WaitMined(waitCtx, tx); err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDependency, err, "waiting for confirmation")
	}
	return nil
}

func equalAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

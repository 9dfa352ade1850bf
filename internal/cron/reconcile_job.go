package cron

import (
	"context"
	"fmt"

	"github.com/lokapay/settlement-engine/pkg/logger"
)

// invoiceReconciler is the slice of the watcher service the job needs.
type invoiceReconciler interface {
	ReconcileOpenInvoices(ctx context.Context) error
}

type ReconcileJobParams struct {
	Logger  *logger.Logger
	Watcher invoiceReconciler
}

// NewReconcileJob wraps the watcher's scan pass as a scheduled job.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Watcher == nil {
		return nil, fmt.Errorf("watcher service required")
	}
	return &reconcileJob{logg: params.Logger, watcher: params.Watcher}, nil
}

type reconcileJob struct {
	logg    *logger.Logger
	watcher invoiceReconciler
}

func (j *reconcileJob) Name() string { return "reconcile-invoices" }

func (j *reconcileJob) Run(ctx context.Context) error {
	if err := j.watcher.ReconcileOpenInvoices(ctx); err != nil {
		return fmt.Errorf("reconcile invoices: %w", err)
	}
	return nil
}

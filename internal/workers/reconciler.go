package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

type escrowReconciler interface {
	ReconcileOrphanedEscrow(ctx context.Context, limit int) (repaired, released int, err error)
}

// EscrowReconcileWorker periodically sweeps for scheduled sessions whose
// escrow debit is missing and repairs them, so a reservation can never stay
// orphaned indefinitely.
type EscrowReconcileWorker struct {
	Sessions  escrowReconciler
	Interval  time.Duration
	BatchSize int
	Logger    *logrus.Logger
}

func (w *EscrowReconcileWorker) Start(ctx context.Context) error {
	if w.Sessions == nil {
		return errors.New("EscrowReconcileWorker missing dependency: Sessions must be set")
	}
	if w.Interval <= 0 {
		w.Interval = 5 * time.Minute
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
	}

	go w.run(ctx)
	return nil
}

func (w *EscrowReconcileWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *EscrowReconcileWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	repaired, released, err := w.Sessions.ReconcileOrphanedEscrow(sweepCtx, w.BatchSize)
	if err != nil {
		w.Logger.WithError(err).Error("escrow reconciliation sweep failed")
		return
	}
	if repaired > 0 || released > 0 {
		w.Logger.WithFields(logrus.Fields{
			"repaired": repaired,
			"released": released,
		}).Info("escrow reconciliation sweep")
	}
}

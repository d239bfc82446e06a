// Package reconcile drains the device-local weight queue into the
// authoritative store with exactly-once effect.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository/localstore"
)

// WeightInserter is the idempotent insert primitive of the authoritative store.
// It must return models.ErrDuplicateWeight when (FarmID, IdempotencyKey)
// already exists.
type WeightInserter interface {
	InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error
}

// Result summarises one pass. Skipped is set when another pass was already
// running and this call did nothing.
type Result struct {
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped,omitempty"`
}

// Reconciler pushes queued captures to the store one at a time, in FIFO order.
type Reconciler struct {
	queue    localstore.PendingStore
	store    WeightInserter
	operator string
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconciler wires a reconciler. operator is recorded as CreatedBy on
// every record it commits.
func NewReconciler(queue localstore.PendingStore, store WeightInserter, operator string, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		queue:    queue,
		store:    store,
		operator: operator,
		logger:   logger.Named("svc.reconcile"),
		now:      time.Now,
	}
}

// Run performs one reconciliation pass over the records queued when it
// starts. A pass that finds the queue claimed by another pass, in any
// process, returns Skipped. Store failures leave the record queued and are
// counted, never returned. The error is non-nil only when the local queue
// cannot be read; the partial result is still valid in that case.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	release, ok, err := r.queue.TryLockDrain(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("locking pending weights: %w", err)
	}
	if !ok {
		r.logger.Debug("reconciliation already in progress")
		return Result{Skipped: true}, nil
	}
	defer release()

	var (
		res     Result
		started = r.now()
		touched bool
	)
	defer func() {
		if touched {
			passDuration.Observe(r.now().Sub(started).Seconds())
			r.refreshPending(ctx)
		}
	}()

	for pending, err := range r.queue.ListOrderedByQueueTime(ctx) {
		if err != nil {
			r.logger.Error("reading local queue", zap.Error(err), zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
			return res, fmt.Errorf("reading pending weights: %w", err)
		}
		touched = true

		outcome := r.push(ctx, pending)
		switch outcome {
		case outcomeCommitted, outcomeDuplicate:
			res.Synced++
			if err := r.queue.Remove(ctx, pending.IdempotencyKey); err != nil {
				// Next pass will take the duplicate path.
				r.logger.Warn("committed record left in local queue",
					zap.String("idempotency_key", pending.IdempotencyKey), zap.Error(err))
			}
		default:
			res.Failed++
		}
		recordsCounter.WithLabelValues(outcome).Inc()
	}

	if touched {
		r.logger.Info("reconciliation pass finished", zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (r *Reconciler) push(ctx context.Context, pending models.PendingWeightRecord) string {
	rec := models.AnimalWeightRecord{
		FarmID:         pending.FarmID,
		AnimalID:       pending.AnimalID,
		MeasuredOn:     pending.MeasuredOn,
		WeightKg:       pending.WeightKg,
		IdempotencyKey: pending.IdempotencyKey,
		Source:         models.SourceOfflineSync,
		CreatedBy:      r.operator,
		CreatedAt:      r.now().UTC(),
	}

	err := r.store.InsertWeight(ctx, rec)
	switch {
	case err == nil:
		return outcomeCommitted
	case errors.Is(err, models.ErrDuplicateWeight):
		r.logger.Debug("weight already recorded", zap.String("idempotency_key", pending.IdempotencyKey))
		return outcomeDuplicate
	default:
		r.logger.Warn("weight stays queued",
			zap.String("idempotency_key", pending.IdempotencyKey),
			zap.String("animal_id", pending.AnimalID),
			zap.Error(err))
		return outcomeFailed
	}
}

func (r *Reconciler) refreshPending(ctx context.Context) {
	n, err := r.queue.Count(ctx)
	if err != nil {
		r.logger.Warn("counting pending weights", zap.Error(err))
		return
	}
	pendingGauge.Set(float64(n))
}

package service

import (
	"context"
	"time"

	"cardtool-backend/internal/common/logger"
	"cardtool-backend/internal/features/card/models"
	"cardtool-backend/internal/features/card/repository"
)

const reconcilerBatchSize = 50

// Reconciler sweeps card_purchase_sagas for purchases that a crash or a
// provider outage left in a non-terminal state and drives them to refunded.
// A saga stuck in issuing means the card may or may not exist at the
// provider; the sweep resolves it conservatively by refunding, since the card
// row was never persisted and the user never saw a card.
type Reconciler struct {
	repo     repository.CardRepository
	interval time.Duration
	cutoff   time.Duration
}

func NewReconciler(repo repository.CardRepository, interval, cutoff time.Duration) *Reconciler {
	return &Reconciler{repo: repo, interval: interval, cutoff: cutoff}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of stuck sagas.
func (r *Reconciler) Sweep(ctx context.Context) {
	sagas, err := r.repo.StuckSagas(ctx, time.Now().Add(-r.cutoff), reconcilerBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("saga sweep query failed")
		return
	}

	for _, saga := range sagas {
		if err := r.resolve(ctx, saga); err != nil {
			logger.Error().Err(err).
				Int64("saga_id", saga.ID).
				Str("state", saga.State).
				Msg("saga reconciliation failed")
		}
	}
}

func (r *Reconciler) resolve(ctx context.Context, saga *models.PurchaseSaga) error {
	if saga.State == models.SagaIssuing {
		if err := r.repo.SetSagaState(ctx, saga.ID, models.SagaRefundPending); err != nil {
			return err
		}
	}

	if err := r.repo.RefundCardPurchase(ctx, saga.UserID, saga.AmountUSDT); err != nil {
		// Left in refund_pending so the next sweep retries.
		return err
	}
	if err := r.repo.SetSagaState(ctx, saga.ID, models.SagaRefunded); err != nil {
		return err
	}

	logger.Info().
		Int64("saga_id", saga.ID).
		Int64("user_id", saga.UserID).
		Str("amount", saga.AmountUSDT.String()).
		Msg("stuck card purchase refunded")
	return nil
}

package services

import (
	"context"
	"errors"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const (
	defaultWatchWindow      = 200
	defaultResubscribeDelay = 5 * time.Second
)

// orderWatcher drives one live query over recent orders and hands every relevant change to the
// order handler, one order at a time.
type orderWatcher struct {
	sellerID         string
	orders           repositories.OrderRepository
	handler          OrderHandler
	window           int
	resubscribeDelay time.Duration
	logger           *zap.Logger
}

// run subscribes and keeps the subscription alive until ctx is cancelled. A failed subscription is
// reopened after resubscribeDelay.
func (w *orderWatcher) run(ctx context.Context) {
	for {
		err := w.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("order listener stopped; resubscribing",
			zap.Duration("delay", w.resubscribeDelay),
			zap.Error(err),
		)
		if err := gax.Sleep(ctx, w.resubscribeDelay); err != nil {
			return
		}
	}
}

func (w *orderWatcher) subscribe(ctx context.Context) error {
	stream, err := w.orders.WatchRecent(ctx, repositories.OrderWatchQuery{Limit: w.window})
	if err != nil {
		return err
	}
	// Cancelling ctx ends Next, so Stop runs on this goroutine once the loop returns.
	defer stream.Stop()

	w.logger.Info("order listener subscribed", zap.Int("window", w.window))
	for {
		batch, err := stream.Next()
		if err != nil {
			return err
		}
		w.handleBatch(ctx, batch)
	}
}

// handleBatch processes the batch sequentially. An order that has started is allowed to finish
// after cancellation, but no further order is started.
func (w *orderWatcher) handleBatch(ctx context.Context, batch repositories.OrderChangeBatch) {
	for _, change := range batch.Changes {
		if ctx.Err() != nil {
			return
		}
		if change.Kind != repositories.OrderChangeAdded && change.Kind != repositories.OrderChangeModified {
			continue
		}
		logger := w.logger.With(zap.String("order_id", change.OrderID), zap.Stringer("change", change.Kind))
		if change.DecodeErr != nil {
			logger.Warn("order document could not be decoded; skipped", zap.Error(change.DecodeErr))
			continue
		}
		if !change.Order.HasSeller(w.sellerID) {
			continue
		}

		if _, err := w.handler.HandleOrder(context.WithoutCancel(ctx), w.sellerID, change.Order); err != nil {
			if errors.Is(err, ErrInventoryInvalidInput) {
				logger.Warn("order rejected by inventory handler", zap.Error(err))
				continue
			}
			logger.Error("inventory handling failed; will retry on next change", zap.Error(err))
		}
	}
}

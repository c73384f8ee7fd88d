package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const instrumentationName = "github.com/jeniffer-joyce/HousebibiGoWhere/internal/services"

func defaultMeter() metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}

// HandleResult summarises one run of the handling sequence.
type HandleResult struct {
	OrderID     string
	SellerID    string
	Status      domain.OrderStatus
	Timestamp   int64
	Outcome     HandleOutcome
	Action      domain.ActionKey
	Adjustments []domain.InventoryItemAdjustment
	// CursorWritten is false when the stored cursor already matched or the write failed.
	CursorWritten bool
}

// InventoryReconcilerDeps bundles the collaborators required to construct a reconciler.
type InventoryReconcilerDeps struct {
	Orders      repositories.OrderRepository
	Adjuster    *StockAdjuster
	Events      InventoryEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      *zap.Logger
	Tracer      trace.Tracer
	Meter       metric.Meter
}

// InventoryReconciler runs the per-order handling sequence for one seller: resolve the latest
// status, consult the cursor, apply the action, then record the cursor.
type InventoryReconciler struct {
	orders   repositories.OrderRepository
	adjuster *StockAdjuster
	events   InventoryEventPublisher
	clock    func() time.Time
	newID    func() string
	logger   *zap.Logger
	tracer   trace.Tracer

	handled     metric.Int64Counter
	adjustments metric.Int64Counter
}

var _ OrderHandler = (*InventoryReconciler)(nil)

// NewInventoryReconciler validates deps and fills in the default clock and telemetry providers.
func NewInventoryReconciler(deps InventoryReconcilerDeps) (*InventoryReconciler, error) {
	if deps.Orders == nil {
		return nil, errors.New("inventory reconciler: order repository is required")
	}
	if deps.Adjuster == nil {
		return nil, errors.New("inventory reconciler: stock adjuster is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := deps.Meter
	if meter == nil {
		meter = defaultMeter()
	}

	handled, err := meter.Int64Counter("inventory.orders.handled",
		metric.WithDescription("Orders passed through the inventory handling sequence, by result"),
	)
	if err != nil {
		logger.Warn("inventory reconciler: unable to register handled metric", zap.Error(err))
	}
	adjustments, err := meter.Int64Counter("inventory.adjustments",
		metric.WithDescription("Inventory actions applied to product documents"),
	)
	if err != nil {
		logger.Warn("inventory reconciler: unable to register adjustments metric", zap.Error(err))
	}

	return &InventoryReconciler{
		orders:   deps.Orders,
		adjuster: deps.Adjuster,
		events:   deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:       idGen,
		logger:      logger,
		tracer:      tracer,
		handled:     handled,
		adjustments: adjustments,
	}, nil
}

// HandleOrder applies the inventory effect of order's latest status for sellerID at most once.
// Product mutation failures are returned and leave the cursor untouched so a later delivery retries.
func (r *InventoryReconciler) HandleOrder(ctx context.Context, sellerID string, order domain.Order) (result HandleResult, err error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return HandleResult{}, fmt.Errorf("%w: seller id is required", ErrInventoryInvalidInput)
	}
	if strings.TrimSpace(order.ID) == "" {
		return HandleResult{}, fmt.Errorf("%w: order id is required", ErrInventoryInvalidInput)
	}

	ctx, span := r.tracer.Start(ctx, "inventory.handle_order", trace.WithAttributes(
		attribute.String("inventory.seller_id", sellerID),
		attribute.String("inventory.order_id", order.ID),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("inventory.status", string(result.Status)),
			attribute.String("inventory.outcome", string(result.Outcome)),
		)
		outcome := string(result.Outcome)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			outcome = "error"
		}
		if r.handled != nil {
			r.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("result", outcome)))
		}
		span.End()
	}()

	result = HandleResult{OrderID: order.ID, SellerID: sellerID}
	logger := r.logger.With(zap.String("seller_id", sellerID), zap.String("order_id", order.ID))

	items := order.ItemsForSeller(sellerID)
	if len(items) == 0 {
		result.Outcome = OutcomeNoItems
		return result, nil
	}

	result.Status = LatestStatus(order)
	if result.Status == "" {
		result.Outcome = OutcomeNoStatus
		logger.Debug("order has no status; skipped")
		return result, nil
	}
	result.Timestamp = LatestStatusTimestamp(order)
	logger = logger.With(zap.String("status", string(result.Status)))

	stored := order.InventoryCursor[sellerID]
	cursor := NormalizeCursor(stored)
	decision := decideAction(cursor, result.Status, result.Timestamp)
	result.Outcome = decision.outcome
	result.Action = decision.action

	if decision.outcome == OutcomeStale {
		logger.Debug("status already processed; skipped",
			zap.Int64("cursor_timestamp", cursor.LastProcessedTimestamp),
			zap.Int64("status_timestamp", result.Timestamp),
		)
		return result, nil
	}

	var marked []domain.ActionKey
	if decision.apply() {
		logger = logger.With(zap.String("action", string(decision.action)))
		logger.Info("applying inventory action", zap.String("previous_status", string(cursor.LastStatus)))

		adjustments, err := r.applyAction(ctx, decision.action, cursor, items)
		result.Adjustments = adjustments
		if err != nil {
			return result, fmt.Errorf("order %s: %s: %w", order.ID, decision.action, err)
		}
		marked = append(marked, decision.action)
		if r.adjustments != nil && len(adjustments) > 0 {
			r.adjustments.Add(ctx, int64(len(adjustments)), metric.WithAttributes(attribute.String("action", string(decision.action))))
		}
	}

	next := advanceCursor(cursor, result.Status, result.Timestamp, marked...)
	if !cursorUnchanged(stored, next) {
		if err := r.orders.UpdateInventoryCursor(ctx, order.ID, sellerID, next); err != nil {
			logger.Warn("could not write inventory cursor; order may be re-evaluated", zap.Error(err))
		} else {
			result.CursorWritten = true
		}
	}

	if len(result.Adjustments) > 0 {
		r.publish(ctx, logger, result)
	}
	return result, nil
}

// applyAction runs the product mutations for action. A cancellation only restores stock that a
// recorded to_ship deduction removed; otherwise nothing is mutated.
func (r *InventoryReconciler) applyAction(ctx context.Context, action domain.ActionKey, cursor domain.InventoryCursor, items []domain.OrderLineItem) ([]domain.InventoryItemAdjustment, error) {
	switch action {
	case domain.ActionToShipDeduct:
		return r.adjuster.Adjust(ctx, items, StockDeduct)
	case domain.ActionCancelledReimburse:
		if !cursor.ProcessedActions[domain.ActionToShipDeduct] {
			r.logger.Debug("cancelled before any deduction; nothing to reimburse")
			return nil, nil
		}
		return r.adjuster.Adjust(ctx, items, StockReimburse)
	case domain.ActionCompletedSales:
		return r.adjuster.AddSales(ctx, items)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInventoryInvalidInput, action)
	}
}

func (r *InventoryReconciler) publish(ctx context.Context, logger *zap.Logger, result HandleResult) {
	if r.events == nil {
		return
	}
	event := domain.InventoryAdjustmentEvent{
		ID:         r.newID(),
		SellerID:   result.SellerID,
		OrderID:    result.OrderID,
		Status:     result.Status,
		Action:     result.Action,
		Items:      result.Adjustments,
		OccurredAt: r.clock(),
	}
	if _, err := r.events.PublishInventoryAdjustment(ctx, event); err != nil {
		logger.Warn("failed to publish inventory adjustment event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// ReconcileOrder loads orderID and runs HandleOrder for sellerID. A missing order surfaces the
// repository not-found error; an order without items for the seller reports OutcomeNoItems.
func (r *InventoryReconciler) ReconcileOrder(ctx context.Context, sellerID, orderID string) (HandleResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return HandleResult{}, fmt.Errorf("%w: order id is required", ErrInventoryInvalidInput)
	}
	if strings.TrimSpace(sellerID) == "" {
		return HandleResult{}, fmt.Errorf("%w: seller id is required", ErrInventoryInvalidInput)
	}
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		return HandleResult{}, err
	}
	return r.HandleOrder(ctx, sellerID, order)
}

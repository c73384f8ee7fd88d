package services

import (
	"context"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
)

// InventoryEventPublisher accepts inventory adjustment notifications for downstream processing.
type InventoryEventPublisher interface {
	PublishInventoryAdjustment(ctx context.Context, event domain.InventoryAdjustmentEvent) (string, error)
}

// OrderHandler runs the inventory handling sequence for one order on behalf of one seller.
type OrderHandler interface {
	HandleOrder(ctx context.Context, sellerID string, order domain.Order) (HandleResult, error)
}

// InventoryWatcherService is the lifecycle surface exposed to the operator API.
type InventoryWatcherService interface {
	Attach(ctx context.Context, opts AttachOptions) (*WatcherHandle, error)
	Detach(ctx context.Context) error
	Current() *WatcherHandle
}

// OrderReconcileService replays the handling sequence for a single stored order.
type OrderReconcileService interface {
	ReconcileOrder(ctx context.Context, sellerID, orderID string) (HandleResult, error)
}

// SystemService exposes health reports and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

var (
	_ InventoryWatcherService = (*InventoryWatcherManager)(nil)
	_ OrderReconcileService   = (*InventoryReconciler)(nil)
)

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// StockMode selects the direction of a stock adjustment.
type StockMode int

const (
	StockDeduct StockMode = iota + 1
	StockReimburse
)

func (m StockMode) String() string {
	switch m {
	case StockDeduct:
		return "deduct"
	case StockReimburse:
		return "reimburse"
	default:
		return "unknown"
	}
}

var (
	// ErrVariantUnresolved indicates neither sizeIndex nor size identified a variant of the product.
	ErrVariantUnresolved = errors.New("inventory: variant could not be resolved")
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
)

const (
	skipReasonMissingProduct   = "missing_product"
	skipReasonUnresolved       = "variant_unresolved"
	skipReasonUnusableProduct  = "unusable_product"
	skipReasonMissingProductID = "missing_product_id"
)

// orderQuantity treats a missing or non-positive quantity as one unit.
func orderQuantity(item domain.OrderLineItem) int {
	if item.Quantity <= 0 {
		return 1
	}
	return item.Quantity
}

// resolveVariant prefers an in-range sizeIndex and falls back to an exact size label match.
func resolveVariant(product domain.Product, item domain.OrderLineItem) (int, error) {
	inRange := func(idx int) bool {
		return idx >= 0 && idx < len(product.Sizes) && idx < len(product.Quantities)
	}
	if item.SizeIndex != nil && inRange(*item.SizeIndex) {
		return *item.SizeIndex, nil
	}
	if item.Size != "" {
		for i, size := range product.Sizes {
			if size == item.Size && inRange(i) {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: product %s size=%q", ErrVariantUnresolved, product.ID, item.Size)
}

// PlanStockAdjustment computes the quantity patch for one line item. Deductions clamp at zero.
func PlanStockAdjustment(product domain.Product, item domain.OrderLineItem, mode StockMode) (domain.ProductPatch, domain.InventoryItemAdjustment, error) {
	qty := orderQuantity(item)
	adjust := func(current int) int {
		if mode == StockDeduct {
			return max(0, current-qty)
		}
		return current + qty
	}

	if product.Variants {
		idx, err := resolveVariant(product, item)
		if err != nil {
			return domain.ProductPatch{}, domain.InventoryItemAdjustment{}, err
		}
		quantities := append([]int(nil), product.Quantities...)
		before := quantities[idx]
		quantities[idx] = adjust(before)
		return domain.ProductPatch{Quantities: quantities}, domain.InventoryItemAdjustment{
			ProductID:    product.ID,
			VariantIndex: idx,
			Size:         product.Sizes[idx],
			Delta:        quantities[idx] - before,
			Value:        quantities[idx],
		}, nil
	}

	next := adjust(product.Quantity)
	return domain.ProductPatch{Quantity: &next}, domain.InventoryItemAdjustment{
		ProductID:    product.ID,
		VariantIndex: -1,
		Delta:        next - product.Quantity,
		Value:        next,
	}, nil
}

// PlanSalesIncrement adds the ordered quantity to totalSales. Stock is not touched.
func PlanSalesIncrement(product domain.Product, item domain.OrderLineItem) (domain.ProductPatch, domain.InventoryItemAdjustment) {
	qty := orderQuantity(item)
	next := product.TotalSales + qty
	return domain.ProductPatch{TotalSales: &next}, domain.InventoryItemAdjustment{
		ProductID:    product.ID,
		VariantIndex: -1,
		Delta:        qty,
		Value:        next,
	}
}

// StockAdjusterDeps bundles the collaborators required to construct a stock adjuster.
type StockAdjusterDeps struct {
	Products repositories.ProductRepository
	Logger   *zap.Logger
	Meter    metric.Meter
}

// StockAdjuster applies per-item product transactions for one order.
type StockAdjuster struct {
	products repositories.ProductRepository
	logger   *zap.Logger
	skipped  metric.Int64Counter
}

// NewStockAdjuster constructs a StockAdjuster over the product repository.
func NewStockAdjuster(deps StockAdjusterDeps) (*StockAdjuster, error) {
	if deps.Products == nil {
		return nil, errors.New("stock adjuster: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := deps.Meter
	if meter == nil {
		meter = defaultMeter()
	}
	skipped, err := meter.Int64Counter("inventory.items.skipped",
		metric.WithDescription("Order line items skipped without changing a product"),
	)
	if err != nil {
		logger.Warn("stock adjuster: unable to register skipped metric", zap.Error(err))
	}
	return &StockAdjuster{
		products: deps.Products,
		logger:   logger,
		skipped:  skipped,
	}, nil
}

// Adjust deducts or reimburses stock for every item.
func (a *StockAdjuster) Adjust(ctx context.Context, items []domain.OrderLineItem, mode StockMode) ([]domain.InventoryItemAdjustment, error) {
	if mode != StockDeduct && mode != StockReimburse {
		return nil, fmt.Errorf("%w: unknown stock mode %d", ErrInventoryInvalidInput, mode)
	}
	return a.forEachItem(ctx, items, func(product domain.Product, item domain.OrderLineItem) (domain.ProductPatch, domain.InventoryItemAdjustment, error) {
		return PlanStockAdjustment(product, item, mode)
	})
}

// AddSales increments totalSales for every item.
func (a *StockAdjuster) AddSales(ctx context.Context, items []domain.OrderLineItem) ([]domain.InventoryItemAdjustment, error) {
	return a.forEachItem(ctx, items, func(product domain.Product, item domain.OrderLineItem) (domain.ProductPatch, domain.InventoryItemAdjustment, error) {
		patch, adj := PlanSalesIncrement(product, item)
		return patch, adj, nil
	})
}

type itemPlanner func(domain.Product, domain.OrderLineItem) (domain.ProductPatch, domain.InventoryItemAdjustment, error)

// forEachItem runs one transaction per item concurrently. Every item runs to completion even when
// a sibling fails; failures are joined. Skipped items produce no adjustment.
func (a *StockAdjuster) forEachItem(ctx context.Context, items []domain.OrderLineItem, plan itemPlanner) ([]domain.InventoryItemAdjustment, error) {
	results := make([]*domain.InventoryItemAdjustment, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = a.applyItem(ctx, item, plan)
		}()
	}
	wg.Wait()

	var applied []domain.InventoryItemAdjustment
	for _, adj := range results {
		if adj != nil {
			applied = append(applied, *adj)
		}
	}
	return applied, errors.Join(errs...)
}

func (a *StockAdjuster) applyItem(ctx context.Context, item domain.OrderLineItem, plan itemPlanner) (*domain.InventoryItemAdjustment, error) {
	logger := a.logger.With(zap.String("product_id", item.ProductID))
	if strings.TrimSpace(item.ProductID) == "" {
		logger.Warn("order item has no product id")
		a.countSkip(ctx, skipReasonMissingProductID)
		return nil, nil
	}

	var (
		adjustment domain.InventoryItemAdjustment
		planErr    error
	)
	found, err := a.products.Mutate(ctx, item.ProductID, func(product domain.Product) (domain.ProductPatch, error) {
		patch, adj, err := plan(product, item)
		if err != nil {
			planErr = err
			return domain.ProductPatch{}, nil
		}
		planErr = nil
		adjustment = adj
		return patch, nil
	})

	var invErr *repositories.InventoryError
	switch {
	case errors.As(err, &invErr) && invErr.Code == repositories.InventoryErrorProductDecode:
		logger.Warn("product stock fields unusable; item skipped", zap.Error(err))
		a.countSkip(ctx, skipReasonUnusableProduct)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("product %s: %w", item.ProductID, err)
	case !found:
		logger.Debug("product not found; item skipped")
		a.countSkip(ctx, skipReasonMissingProduct)
		return nil, nil
	case errors.Is(planErr, ErrVariantUnresolved):
		logger.Warn("variant not found; item skipped",
			zap.String("size", item.Size),
			zap.Any("size_index", item.SizeIndex),
		)
		a.countSkip(ctx, skipReasonUnresolved)
		return nil, nil
	case planErr != nil:
		return nil, fmt.Errorf("product %s: %w", item.ProductID, planErr)
	}

	logger.Info("product adjusted",
		zap.Int("variant_index", adjustment.VariantIndex),
		zap.Int("delta", adjustment.Delta),
		zap.Int("value", adjustment.Value),
	)
	return &adjustment, nil
}

func (a *StockAdjuster) countSkip(ctx context.Context, reason string) {
	if a.skipped != nil {
		a.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

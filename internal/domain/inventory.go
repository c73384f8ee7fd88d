package domain

import "time"

// OrderStatus enumerates the lifecycle states recorded in an order's status log.
type OrderStatus string

const (
	OrderStatusToPay        OrderStatus = "to_pay"
	OrderStatusToShip       OrderStatus = "to_ship"
	OrderStatusToReceive    OrderStatus = "to_receive"
	OrderStatusShipped      OrderStatus = "shipped"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusReturnRefund OrderStatus = "return_refund"
)

// ActionKey identifies one inventory side effect tied to a lifecycle status.
type ActionKey string

const (
	ActionToShipDeduct       ActionKey = "to_ship_deduct"
	ActionCancelledReimburse ActionKey = "cancelled_reimburse"
	ActionCompletedSales     ActionKey = "completed_sales"
)

// Order is the seller-facing view of a purchase document. Only the fields the inventory engine
// reads are decoded.
type Order struct {
	ID              string
	Products        []OrderLineItem
	StatusLog       []StatusLogEntry
	Status          OrderStatus
	InventoryCursor map[string]StoredCursor
	UpdatedAt       time.Time
	CreatedAt       time.Time
}

// OrderLineItem is one purchased product within an order.
type OrderLineItem struct {
	ProductID string
	SellerID  string
	// Quantity is zero when the stored value was missing or not a positive number.
	Quantity  int
	Price     float64
	Size      string
	SizeIndex *int
}

// StatusLogEntry records a single lifecycle transition. Time is zero when the stored value could
// not be parsed.
type StatusLogEntry struct {
	Status OrderStatus
	Time   time.Time
	By     string
}

// ItemsForSeller returns the line items that belong to sellerID, preserving order.
func (o Order) ItemsForSeller(sellerID string) []OrderLineItem {
	var items []OrderLineItem
	for _, item := range o.Products {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}
	return items
}

// HasSeller reports whether at least one line item belongs to sellerID.
func (o Order) HasSeller(sellerID string) bool {
	for _, item := range o.Products {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// Product captures the stock-bearing fields of a product document.
//
// Single-variant products use Quantity and Price. Multi-variant products (Variants == true) keep
// parallel Sizes/Quantities/Prices slices addressed by variant index.
type Product struct {
	ID         string
	SellerID   string
	Variants   bool
	Sizes      []string
	Quantity   int
	Quantities []int
	Price      float64
	Prices     []float64
	TotalSales int
}

// ProductPatch lists the product fields a transaction rewrites. Nil or empty fields are left alone.
type ProductPatch struct {
	Quantity   *int
	Quantities []int
	TotalSales *int
}

// IsEmpty reports whether the patch carries no field updates.
func (p ProductPatch) IsEmpty() bool {
	return p.Quantity == nil && p.Quantities == nil && p.TotalSales == nil
}

// InventoryCursor is the per-seller idempotency record stored on an order.
type InventoryCursor struct {
	LastStatus             OrderStatus
	LastProcessedTimestamp int64
	ProcessedActions       map[ActionKey]bool
}

// Equal reports whether both cursors carry the same status, timestamp and applied actions.
// A false entry and a missing entry are treated alike.
func (c InventoryCursor) Equal(other InventoryCursor) bool {
	if c.LastStatus != other.LastStatus || c.LastProcessedTimestamp != other.LastProcessedTimestamp {
		return false
	}
	for key, done := range c.ProcessedActions {
		if done != other.ProcessedActions[key] {
			return false
		}
	}
	for key, done := range other.ProcessedActions {
		if done != c.ProcessedActions[key] {
			return false
		}
	}
	return true
}

// CursorKind distinguishes the shapes a stored cursor may take.
type CursorKind int

const (
	CursorAbsent CursorKind = iota
	// CursorLegacy is the early bare-string form holding only the last applied status.
	CursorLegacy
	CursorStructured
)

// StoredCursor is the cursor exactly as found on the order document.
type StoredCursor struct {
	Kind   CursorKind
	Legacy string
	Record InventoryCursor
}

// InventoryItemAdjustment records the effect of one applied action on one product.
type InventoryItemAdjustment struct {
	ProductID string `json:"productId"`
	// VariantIndex is -1 for single-variant products.
	VariantIndex int    `json:"variantIndex"`
	Size         string `json:"size,omitempty"`
	Delta        int    `json:"delta"`
	// Value is the resulting stock level, or the resulting totalSales for sales actions.
	Value int `json:"value"`
}

// InventoryAdjustmentEvent is emitted after an action changed product documents for an order.
type InventoryAdjustmentEvent struct {
	ID         string                    `json:"id"`
	SellerID   string                    `json:"sellerId"`
	OrderID    string                    `json:"orderId"`
	Status     OrderStatus               `json:"status"`
	Action     ActionKey                 `json:"action"`
	Items      []InventoryItemAdjustment `json:"items"`
	OccurredAt time.Time                 `json:"occurredAt"`
}

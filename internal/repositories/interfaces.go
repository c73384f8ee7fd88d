package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
)

// ErrChangeStreamClosed is returned by OrderChangeStream.Next once Stop has been called.
var ErrChangeStreamClosed = errors.New("repositories: change stream closed")

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderChangeKind classifies a document change within a live query batch.
type OrderChangeKind int

const (
	OrderChangeAdded OrderChangeKind = iota + 1
	OrderChangeModified
	OrderChangeRemoved
)

// String returns the lower-case name used in logs.
func (k OrderChangeKind) String() string {
	switch k {
	case OrderChangeAdded:
		return "added"
	case OrderChangeModified:
		return "modified"
	case OrderChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// OrderChange is a single order document change. DecodeErr is set when the document could not be
// mapped onto domain.Order; Order then only carries the ID.
type OrderChange struct {
	Kind      OrderChangeKind
	OrderID   string
	Order     domain.Order
	DecodeErr error
}

// OrderChangeBatch groups the changes delivered by one live query snapshot. The first batch of a
// subscription reports every matching document as added.
type OrderChangeBatch struct {
	Changes  []OrderChange
	ReadTime time.Time
}

// OrderChangeStream yields change batches until Stop is called or the underlying listener fails.
type OrderChangeStream interface {
	// Next blocks until the next batch is available. It returns ErrChangeStreamClosed after Stop and
	// the context error when the subscription context is cancelled.
	Next() (OrderChangeBatch, error)
	// Stop must not be called while Next is blocked on another goroutine. Cancel the subscription
	// context to end Next, then Stop from the goroutine that called it.
	Stop()
}

// OrderWatchQuery bounds the live query over recently updated orders.
type OrderWatchQuery struct {
	Limit int
}

// OrderRepository exposes the order reads and cursor writes used by inventory reconciliation.
type OrderRepository interface {
	// WatchRecent subscribes to the most recently updated orders, newest first.
	WatchRecent(ctx context.Context, query OrderWatchQuery) (OrderChangeStream, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// UpdateInventoryCursor replaces inventoryCursor.<sellerID> without touching other sellers' entries.
	UpdateInventoryCursor(ctx context.Context, orderID, sellerID string, cursor domain.InventoryCursor) error
}

// ProductMutation computes the patch applied to a product inside a transaction. Returning an empty
// patch leaves the document untouched.
type ProductMutation func(product domain.Product) (domain.ProductPatch, error)

// ProductRepository applies read-modify-write updates to product documents.
type ProductRepository interface {
	// Mutate runs fn against the current product inside a single transaction. found is false when
	// the product document does not exist; fn is not invoked in that case.
	Mutate(ctx context.Context, productID string, fn ProductMutation) (found bool, err error)
}

// BusinessRepository checks seller business profiles.
type BusinessRepository interface {
	Exists(ctx context.Context, sellerID string) (bool, error)
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Businesses() BusinessRepository
	Health() HealthRepository
}

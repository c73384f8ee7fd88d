package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	pfirestore "github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const (
	defaultOrdersCollection = "orders"
	inventoryCursorField    = "inventoryCursor"
	orderUpdatedAtField     = "updatedAt"
)

// OrderRepository reads order documents and maintains their per-seller inventory cursors.
type OrderRepository struct {
	orders *pfirestore.BaseRepository[domain.Order]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository binds the repository to collection, defaulting to "orders".
func NewOrderRepository(provider *pfirestore.Provider, collection string) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultOrdersCollection
	}
	return &OrderRepository{
		orders: pfirestore.NewBaseRepository(provider, collection, pfirestore.MapDecoder(decodeOrder)),
	}, nil
}

// WatchRecent opens a live query over the most recently updated orders.
func (r *OrderRepository) WatchRecent(ctx context.Context, query repositories.OrderWatchQuery) (repositories.OrderChangeStream, error) {
	if query.Limit <= 0 {
		return nil, errors.New("order repository: watch limit must be positive")
	}
	iter, err := r.orders.Listen(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(orderUpdatedAtField, firestore.Desc).Limit(query.Limit)
	})
	if err != nil {
		return nil, wrapInventoryError("orders.watch", err)
	}
	return &orderChangeStream{ctx: ctx, iter: iter, orders: r.orders}, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Order{}, repositories.NewInventoryError("orders.get", repositories.InventoryErrorOrderNotFound,
				fmt.Sprintf("order %s not found", orderID), err)
		}
		return domain.Order{}, wrapInventoryError("orders.get", err)
	}
	return doc.Data, nil
}

// UpdateInventoryCursor writes inventoryCursor.<sellerID> as a field-path update so entries of
// other sellers sharing the order are preserved.
func (r *OrderRepository) UpdateInventoryCursor(ctx context.Context, orderID, sellerID string, cursor domain.InventoryCursor) error {
	if strings.TrimSpace(sellerID) == "" {
		return errors.New("order repository: seller id is required")
	}
	_, err := r.orders.Update(ctx, orderID, []firestore.Update{{
		FieldPath: firestore.FieldPath{inventoryCursorField, sellerID},
		Value:     encodeCursor(cursor),
	}})
	return wrapInventoryError("orders.update_cursor", err)
}

type orderChangeStream struct {
	ctx     context.Context
	iter    *firestore.QuerySnapshotIterator
	orders  *pfirestore.BaseRepository[domain.Order]
	stopped atomic.Bool
}

func (s *orderChangeStream) Next() (repositories.OrderChangeBatch, error) {
	if s.stopped.Load() {
		return repositories.OrderChangeBatch{}, repositories.ErrChangeStreamClosed
	}
	snapshot, err := s.iter.Next()
	if err != nil {
		switch {
		case s.stopped.Load(), errors.Is(err, iterator.Done):
			return repositories.OrderChangeBatch{}, repositories.ErrChangeStreamClosed
		case s.ctx.Err() != nil:
			return repositories.OrderChangeBatch{}, s.ctx.Err()
		}
		wrapped := pfirestore.WrapError("orders.watch", err)
		if errors.Is(wrapped, context.Canceled) || errors.Is(wrapped, context.DeadlineExceeded) {
			return repositories.OrderChangeBatch{}, wrapped
		}
		return repositories.OrderChangeBatch{}, repositories.NewInventoryError("orders.watch",
			repositories.InventoryErrorStreamFailed, "order snapshot listener failed", wrapped)
	}

	batch := repositories.OrderChangeBatch{
		ReadTime: snapshot.ReadTime,
		Changes:  make([]repositories.OrderChange, 0, len(snapshot.Changes)),
	}
	for _, change := range snapshot.Changes {
		if change.Doc == nil || change.Doc.Ref == nil {
			continue
		}
		item := repositories.OrderChange{
			Kind:    changeKind(change.Kind),
			OrderID: change.Doc.Ref.ID,
		}
		if item.Kind != repositories.OrderChangeRemoved {
			doc, err := s.orders.Decode(s.ctx, change.Doc)
			item.Order = doc.Data
			item.DecodeErr = err
		}
		item.Order.ID = item.OrderID
		batch.Changes = append(batch.Changes, item)
	}
	return batch, nil
}

// Stop releases the listener. The iterator is not safe for a Stop that overlaps Next, so callers
// cancel the subscription context first and Stop from the goroutine that called Next.
func (s *orderChangeStream) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		s.iter.Stop()
	}
}

func changeKind(kind firestore.DocumentChangeKind) repositories.OrderChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return repositories.OrderChangeAdded
	case firestore.DocumentModified:
		return repositories.OrderChangeModified
	default:
		return repositories.OrderChangeRemoved
	}
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

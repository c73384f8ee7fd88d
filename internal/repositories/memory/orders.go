// Package memory provides in-process repository implementations for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// CursorWrite records one UpdateInventoryCursor call.
type CursorWrite struct {
	OrderID  string
	SellerID string
	Cursor   domain.InventoryCursor
}

// OrderRepository keeps orders in memory and fans change batches out to active watch streams.
type OrderRepository struct {
	mu           sync.Mutex
	orders       map[string]domain.Order
	streams      []*orderStream
	watches      int
	cursorWrites []CursorWrite
	stopsInNext  atomic.Int32

	// WatchErr, when set, fails WatchRecent.
	WatchErr error
	// CursorErr, when set, fails UpdateInventoryCursor after recording nothing.
	CursorErr error
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: map[string]domain.Order{}}
}

// Put stores or replaces an order.
func (r *OrderRepository) Put(order domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
}

// Get returns a copy of the stored order.
func (r *OrderRepository) Get(orderID string) (domain.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	return cloneOrder(order), ok
}

// Emit delivers batch to every open stream.
func (r *OrderRepository) Emit(batch repositories.OrderChangeBatch) {
	r.mu.Lock()
	streams := append([]*orderStream(nil), r.streams...)
	r.mu.Unlock()
	for _, s := range streams {
		s.push(streamItem{batch: batch})
	}
}

// EmitOrders stores the orders and delivers them as modified changes.
func (r *OrderRepository) EmitOrders(orders ...domain.Order) {
	batch := repositories.OrderChangeBatch{}
	for _, order := range orders {
		r.Put(order)
		batch.Changes = append(batch.Changes, repositories.OrderChange{
			Kind:    repositories.OrderChangeModified,
			OrderID: order.ID,
			Order:   cloneOrder(order),
		})
	}
	r.Emit(batch)
}

// Fail terminates every open stream with err.
func (r *OrderRepository) Fail(err error) {
	r.mu.Lock()
	streams := append([]*orderStream(nil), r.streams...)
	r.mu.Unlock()
	for _, s := range streams {
		s.push(streamItem{err: err})
	}
}

// Watches reports how many subscriptions have been opened.
func (r *OrderRepository) Watches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watches
}

// OpenStreams reports how many subscriptions are still open.
func (r *OrderRepository) OpenStreams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// StopsDuringNext counts Stop calls that arrived while another goroutine was blocked in Next.
// A correct consumer keeps this at zero.
func (r *OrderRepository) StopsDuringNext() int {
	return int(r.stopsInNext.Load())
}

// CursorWrites returns the recorded cursor writes in call order.
func (r *OrderRepository) CursorWrites() []CursorWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CursorWrite(nil), r.cursorWrites...)
}

func (r *OrderRepository) WatchRecent(ctx context.Context, query repositories.OrderWatchQuery) (repositories.OrderChangeStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.WatchErr != nil {
		return nil, r.WatchErr
	}
	r.watches++

	s := &orderStream{ctx: ctx, items: make(chan streamItem, 64), done: make(chan struct{})}
	s.onStop = func() { r.removeStream(s) }
	s.onOverlap = func() { r.stopsInNext.Add(1) }
	r.streams = append(r.streams, s)

	initial := repositories.OrderChangeBatch{}
	for id, order := range r.orders {
		initial.Changes = append(initial.Changes, repositories.OrderChange{
			Kind:    repositories.OrderChangeAdded,
			OrderID: id,
			Order:   cloneOrder(order),
		})
		if query.Limit > 0 && len(initial.Changes) == query.Limit {
			break
		}
	}
	s.items <- streamItem{batch: initial}
	return s, nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.Get(orderID)
	if !ok {
		return domain.Order{}, repositories.NewInventoryError("orders.get", repositories.InventoryErrorOrderNotFound,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	return order, nil
}

func (r *OrderRepository) UpdateInventoryCursor(_ context.Context, orderID, sellerID string, cursor domain.InventoryCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CursorErr != nil {
		return r.CursorErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return repositories.NewInventoryError("orders.update_cursor", repositories.InventoryErrorOrderNotFound,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	if order.InventoryCursor == nil {
		order.InventoryCursor = map[string]domain.StoredCursor{}
	}
	record := cloneCursor(cursor)
	order.InventoryCursor[sellerID] = domain.StoredCursor{Kind: domain.CursorStructured, Record: record}
	r.orders[orderID] = order
	r.cursorWrites = append(r.cursorWrites, CursorWrite{OrderID: orderID, SellerID: sellerID, Cursor: cloneCursor(cursor)})
	return nil
}

func (r *OrderRepository) removeStream(target *orderStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.streams {
		if s == target {
			r.streams = append(r.streams[:i], r.streams[i+1:]...)
			return
		}
	}
}

type streamItem struct {
	batch repositories.OrderChangeBatch
	err   error
}

type orderStream struct {
	ctx       context.Context
	items     chan streamItem
	done      chan struct{}
	stopOnce  sync.Once
	onStop    func()
	onOverlap func()
	inNext    atomic.Bool
}

func (s *orderStream) push(item streamItem) {
	select {
	case s.items <- item:
	case <-s.done:
	}
}

func (s *orderStream) Next() (repositories.OrderChangeBatch, error) {
	s.inNext.Store(true)
	defer s.inNext.Store(false)
	select {
	case <-s.done:
		return repositories.OrderChangeBatch{}, repositories.ErrChangeStreamClosed
	default:
	}
	select {
	case item := <-s.items:
		if item.err != nil {
			s.stop()
			return repositories.OrderChangeBatch{}, item.err
		}
		return item.batch, nil
	case <-s.done:
		return repositories.OrderChangeBatch{}, repositories.ErrChangeStreamClosed
	case <-s.ctx.Done():
		return repositories.OrderChangeBatch{}, s.ctx.Err()
	}
}

func (s *orderStream) Stop() {
	if s.inNext.Load() && s.onOverlap != nil {
		s.onOverlap()
	}
	s.stop()
}

func (s *orderStream) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Products = append([]domain.OrderLineItem(nil), order.Products...)
	out.StatusLog = append([]domain.StatusLogEntry(nil), order.StatusLog...)
	if order.InventoryCursor != nil {
		out.InventoryCursor = make(map[string]domain.StoredCursor, len(order.InventoryCursor))
		for seller, stored := range order.InventoryCursor {
			stored.Record = cloneCursor(stored.Record)
			out.InventoryCursor[seller] = stored
		}
	}
	return out
}

func cloneCursor(cursor domain.InventoryCursor) domain.InventoryCursor {
	out := cursor
	out.ProcessedActions = make(map[domain.ActionKey]bool, len(cursor.ProcessedActions))
	for key, done := range cursor.ProcessedActions {
		out.ProcessedActions[key] = done
	}
	return out
}

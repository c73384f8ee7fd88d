package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

const defaultActivationRetry = 2 * time.Second

// WatcherState is the lifecycle state of an attached watcher.
type WatcherState string

const (
	// WatcherPending means the seller's business profile has not been found yet.
	WatcherPending WatcherState = "pending"
	WatcherActive  WatcherState = "active"
	WatcherStopped WatcherState = "stopped"
)

// AttachOptions identifies the seller whose orders drive inventory.
type AttachOptions struct {
	SellerID string
}

// WatcherStatus is a point-in-time view of a watcher handle.
type WatcherStatus struct {
	SellerID    string
	State       WatcherState
	AttachedAt  time.Time
	ActivatedAt time.Time
}

// WatcherHandle controls one attached watcher. Stop is the unsubscribe operation.
type WatcherHandle struct {
	sellerID   string
	cancel     context.CancelFunc
	done       chan struct{}
	attachedAt time.Time
	stopping   atomic.Bool

	mu          sync.Mutex
	state       WatcherState
	activatedAt time.Time
}

func (h *WatcherHandle) SellerID() string {
	return h.sellerID
}

// Stop cancels a pending activation retry or the live subscription. It does not wait; use Done.
func (h *WatcherHandle) Stop() {
	h.stopping.Store(true)
	h.cancel()
}

// Done is closed once the watcher goroutine has exited.
func (h *WatcherHandle) Done() <-chan struct{} {
	return h.done
}

func (h *WatcherHandle) State() WatcherState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Status returns a snapshot of the handle.
func (h *WatcherHandle) Status() WatcherStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return WatcherStatus{
		SellerID:    h.sellerID,
		State:       h.state,
		AttachedAt:  h.attachedAt,
		ActivatedAt: h.activatedAt,
	}
}

// Wait blocks until the watcher exits or ctx is done.
func (h *WatcherHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WatcherHandle) setState(state WatcherState, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
	if state == WatcherActive {
		h.activatedAt = at
	}
}

// InventoryWatcherManagerDeps bundles the collaborators required to construct a watcher manager.
type InventoryWatcherManagerDeps struct {
	Orders           repositories.OrderRepository
	Businesses       repositories.BusinessRepository
	Handler          OrderHandler
	Window           int
	ActivationRetry  time.Duration
	ResubscribeDelay time.Duration
	Clock            func() time.Time
	Logger           *zap.Logger
}

// InventoryWatcherManager owns at most one attached watcher.
type InventoryWatcherManager struct {
	orders           repositories.OrderRepository
	businesses       repositories.BusinessRepository
	handler          OrderHandler
	window           int
	activationRetry  time.Duration
	resubscribeDelay time.Duration
	clock            func() time.Time
	logger           *zap.Logger

	// lifecycle serialises Attach and Detach; mu only guards current and is never held while waiting.
	lifecycle sync.Mutex
	mu        sync.Mutex
	current   *WatcherHandle
}

// NewInventoryWatcherManager constructs a manager with no watcher attached.
func NewInventoryWatcherManager(deps InventoryWatcherManagerDeps) (*InventoryWatcherManager, error) {
	if deps.Orders == nil {
		return nil, errors.New("inventory watcher manager: order repository is required")
	}
	if deps.Businesses == nil {
		return nil, errors.New("inventory watcher manager: business repository is required")
	}
	if deps.Handler == nil {
		return nil, errors.New("inventory watcher manager: order handler is required")
	}

	window := deps.Window
	if window <= 0 {
		window = defaultWatchWindow
	}
	retry := deps.ActivationRetry
	if retry <= 0 {
		retry = defaultActivationRetry
	}
	resubscribe := deps.ResubscribeDelay
	if resubscribe <= 0 {
		resubscribe = defaultResubscribeDelay
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InventoryWatcherManager{
		orders:           deps.Orders,
		businesses:       deps.Businesses,
		handler:          deps.Handler,
		window:           window,
		activationRetry:  retry,
		resubscribeDelay: resubscribe,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Attach starts watching orders for opts.SellerID. Attaching the seller that is already attached
// returns the existing handle; attaching another seller stops the previous watcher and waits for it
// before starting. The watcher outlives ctx and does not join the caller's trace; other values are
// inherited.
func (m *InventoryWatcherManager) Attach(ctx context.Context, opts AttachOptions) (*WatcherHandle, error) {
	sellerID := strings.TrimSpace(opts.SellerID)
	if sellerID == "" {
		return nil, fmt.Errorf("%w: seller id is required", ErrInventoryInvalidInput)
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	prev := m.current
	if prev != nil && prev.sellerID == sellerID && !prev.stopping.Load() {
		m.mu.Unlock()
		return prev, nil
	}
	m.current = nil
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
		if err := prev.Wait(ctx); err != nil {
			return nil, fmt.Errorf("inventory watcher manager: waiting for seller %s watcher: %w", prev.sellerID, err)
		}
		m.logger.Info("inventory watcher detached", zap.String("seller_id", prev.sellerID))
	}

	watchCtx, cancel := context.WithCancel(trace.ContextWithSpan(context.WithoutCancel(ctx), nil))
	handle := &WatcherHandle{
		sellerID:   sellerID,
		cancel:     cancel,
		done:       make(chan struct{}),
		attachedAt: m.clock(),
		state:      WatcherPending,
	}
	m.mu.Lock()
	m.current = handle
	m.mu.Unlock()

	go m.run(watchCtx, handle)
	m.logger.Info("inventory watcher attached", zap.String("seller_id", sellerID))
	return handle, nil
}

// Detach stops the current watcher, if any, and waits for it to exit or ctx to expire.
func (m *InventoryWatcherManager) Detach(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	handle := m.current
	m.current = nil
	m.mu.Unlock()

	if handle == nil {
		return nil
	}
	handle.Stop()
	if err := handle.Wait(ctx); err != nil {
		return err
	}
	m.logger.Info("inventory watcher detached", zap.String("seller_id", handle.sellerID))
	return nil
}

// Current returns the attached handle or nil.
func (m *InventoryWatcherManager) Current() *WatcherHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *InventoryWatcherManager) run(ctx context.Context, h *WatcherHandle) {
	defer close(h.done)
	defer func() {
		h.setState(WatcherStopped, m.clock())
		h.cancel()
	}()

	logger := m.logger.With(zap.String("seller_id", h.sellerID))
	if !m.awaitBusinessProfile(ctx, h.sellerID, logger) {
		return
	}

	h.setState(WatcherActive, m.clock())
	logger.Info("inventory watcher active")

	watcher := &orderWatcher{
		sellerID:         h.sellerID,
		orders:           m.orders,
		handler:          m.handler,
		window:           m.window,
		resubscribeDelay: m.resubscribeDelay,
		logger:           logger,
	}
	watcher.run(ctx)
}

// awaitBusinessProfile polls until businesses/{sellerID} exists. It returns false when ctx ends
// first. Lookup errors are retried like a missing profile.
func (m *InventoryWatcherManager) awaitBusinessProfile(ctx context.Context, sellerID string, logger *zap.Logger) bool {
	for attempt := 1; ; attempt++ {
		exists, err := m.businesses.Exists(ctx, sellerID)
		if ctx.Err() != nil {
			return false
		}
		switch {
		case err != nil:
			logger.Warn("business profile lookup failed; retrying", zap.Int("attempt", attempt), zap.Error(err))
		case exists:
			return true
		default:
			logger.Debug("business profile not found yet; retrying", zap.Int("attempt", attempt))
		}
		if err := gax.Sleep(ctx, m.activationRetry); err != nil {
			return false
		}
	}
}

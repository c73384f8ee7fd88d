package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/httpx"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/requestctx"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/services"
)

// InventoryHandlers exposes the watcher lifecycle and single-order reconciliation to operators.
type InventoryHandlers struct {
	watcher    services.InventoryWatcherService
	reconciler services.OrderReconcileService
}

// NewInventoryHandlers constructs the operator inventory handlers.
func NewInventoryHandlers(watcher services.InventoryWatcherService, reconciler services.OrderReconcileService) *InventoryHandlers {
	return &InventoryHandlers{watcher: watcher, reconciler: reconciler}
}

// Routes registers the inventory endpoints below the router it is mounted on.
func (h *InventoryHandlers) Routes(r chi.Router) {
	r.Route("/inventory", func(rt chi.Router) {
		rt.Get("/watcher", h.getWatcher)
		rt.Put("/watcher", h.attachWatcher)
		rt.Delete("/watcher", h.detachWatcher)
		rt.Post("/orders/{orderId}:reconcile", h.reconcileOrder)
	})
}

type sellerRequest struct {
	SellerID string `json:"sellerId"`
}

type watcherPayload struct {
	Attached    bool   `json:"attached"`
	SellerID    string `json:"sellerId,omitempty"`
	State       string `json:"state,omitempty"`
	AttachedAt  string `json:"attachedAt,omitempty"`
	ActivatedAt string `json:"activatedAt,omitempty"`
}

type adjustmentPayload struct {
	ProductID    string `json:"productId"`
	VariantIndex int    `json:"variantIndex"`
	Size         string `json:"size,omitempty"`
	Delta        int    `json:"delta"`
	Value        int    `json:"value"`
}

type reconcilePayload struct {
	OrderID       string              `json:"orderId"`
	SellerID      string              `json:"sellerId"`
	Status        string              `json:"status,omitempty"`
	Timestamp     int64               `json:"timestamp,omitempty"`
	Outcome       string              `json:"outcome"`
	Action        string              `json:"action,omitempty"`
	Adjustments   []adjustmentPayload `json:"adjustments"`
	CursorWritten bool                `json:"cursorWritten"`
}

func buildWatcherPayload(handle *services.WatcherHandle) watcherPayload {
	if handle == nil {
		return watcherPayload{}
	}
	status := handle.Status()
	return watcherPayload{
		Attached:    true,
		SellerID:    status.SellerID,
		State:       string(status.State),
		AttachedAt:  formatTime(status.AttachedAt),
		ActivatedAt: formatTime(status.ActivatedAt),
	}
}

func buildReconcilePayload(result services.HandleResult) reconcilePayload {
	payload := reconcilePayload{
		OrderID:       result.OrderID,
		SellerID:      result.SellerID,
		Status:        string(result.Status),
		Timestamp:     result.Timestamp,
		Outcome:       string(result.Outcome),
		Action:        string(result.Action),
		Adjustments:   make([]adjustmentPayload, 0, len(result.Adjustments)),
		CursorWritten: result.CursorWritten,
	}
	for _, adj := range result.Adjustments {
		payload.Adjustments = append(payload.Adjustments, toAdjustmentPayload(adj))
	}
	return payload
}

func toAdjustmentPayload(adj domain.InventoryItemAdjustment) adjustmentPayload {
	return adjustmentPayload{
		ProductID:    adj.ProductID,
		VariantIndex: adj.VariantIndex,
		Size:         adj.Size,
		Delta:        adj.Delta,
		Value:        adj.Value,
	}
}

func (h *InventoryHandlers) getWatcher(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "inventory watcher unavailable", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildWatcherPayload(h.watcher.Current()))
}

func (h *InventoryHandlers) attachWatcher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.watcher == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "inventory watcher unavailable", http.StatusServiceUnavailable))
		return
	}

	var req sellerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	handle, err := h.watcher.Attach(ctx, services.AttachOptions{SellerID: req.SellerID})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("inventory watcher attached via operator API", zap.String("seller_id", handle.SellerID()))
	httpx.WriteJSON(w, http.StatusOK, buildWatcherPayload(handle))
}

func (h *InventoryHandlers) detachWatcher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.watcher == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "inventory watcher unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.watcher.Detach(ctx); err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reconcileOrder replays the handling sequence for one order. The seller defaults to the attached
// watcher's seller when the body omits it.
func (h *InventoryHandlers) reconcileOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "inventory reconciler unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	var req sellerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	sellerID := strings.TrimSpace(req.SellerID)
	if sellerID == "" && h.watcher != nil {
		if handle := h.watcher.Current(); handle != nil {
			sellerID = handle.SellerID()
		}
	}
	if sellerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sellerId is required when no watcher is attached", http.StatusBadRequest))
		return
	}

	result, err := h.reconciler.ReconcileOrder(ctx, sellerID, orderID)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildReconcilePayload(result))
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	var invErr *repositories.InventoryError
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.As(err, &invErr) && invErr.IsNotFound():
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", invErr.Message, http.StatusNotFound))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "operation timed out", http.StatusGatewayTimeout))
	case errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request cancelled", 499))
	default:
		requestctx.Logger(ctx).Error("inventory operation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal().WithDetails(map[string]any{"retryable": true}))
	}
}

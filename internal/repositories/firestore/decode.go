package firestore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

// Order and product documents are written by several web clients, so numbers may arrive as
// integers, doubles or numeric strings and timestamps in any of the shapes below.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeTime maps a native timestamp, epoch milliseconds, an ISO-8601 string or a serialised
// {seconds, nanoseconds} object onto a time. Unparsable or non-positive values yield the zero time.
func normalizeTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() || v.UnixMilli() <= 0 {
			return time.Time{}
		}
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return normalizeTime(*v)
	case int64:
		return fromMillis(float64(v))
	case int:
		return fromMillis(float64(v))
	case float64:
		return fromMillis(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}
		}
		if millis, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return fromMillis(millis)
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return normalizeTime(parsed)
			}
		}
	case map[string]any:
		seconds, ok := firstNumber(v, "seconds", "_seconds")
		if !ok {
			return time.Time{}
		}
		nanos, _ := firstNumber(v, "nanoseconds", "_nanoseconds")
		return normalizeTime(time.Unix(int64(seconds), int64(nanos)))
	}
	return time.Time{}
}

func fromMillis(millis float64) time.Time {
	if math.IsNaN(millis) || math.IsInf(millis, 0) || millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(millis)).UTC()
}

func firstNumber(data map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if n, ok := asNumber(data[key]); ok {
			return n, true
		}
	}
	return 0, false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// asInt truncates numeric values towards zero. Non-numeric values yield 0.
func asInt(value any) int {
	n, _ := asNumber(value)
	return int(n)
}

// asIndex accepts only integral numbers, so "1.5" or true never select a variant.
func asIndex(value any) *int {
	n, ok := asNumber(value)
	if !ok || n != math.Trunc(n) {
		return nil
	}
	idx := int(n)
	return &idx
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func decodeOrder(id string, data map[string]any) (domain.Order, error) {
	order := domain.Order{
		ID:        id,
		Status:    domain.OrderStatus(asString(data["status"])),
		UpdatedAt: normalizeTime(data["updatedAt"]),
		CreatedAt: normalizeTime(data["createdAt"]),
	}

	if raw, ok := data["products"]; ok && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return order, repositories.NewInventoryError("orders.decode", repositories.InventoryErrorOrderDecode,
				fmt.Sprintf("order %s: products is %T, want array", id, raw), nil)
		}
		for _, entry := range items {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			order.Products = append(order.Products, decodeLineItem(fields))
		}
	}

	if raw, ok := data["statusLog"]; ok && raw != nil {
		entries, ok := raw.([]any)
		if !ok {
			return order, repositories.NewInventoryError("orders.decode", repositories.InventoryErrorOrderDecode,
				fmt.Sprintf("order %s: statusLog is %T, want array", id, raw), nil)
		}
		for _, entry := range entries {
			fields, _ := entry.(map[string]any)
			order.StatusLog = append(order.StatusLog, domain.StatusLogEntry{
				Status: domain.OrderStatus(asString(fields["status"])),
				Time:   normalizeTime(fields["time"]),
				By:     asString(fields["by"]),
			})
		}
	}

	if cursors, ok := data["inventoryCursor"].(map[string]any); ok && len(cursors) > 0 {
		order.InventoryCursor = make(map[string]domain.StoredCursor, len(cursors))
		for sellerID, raw := range cursors {
			order.InventoryCursor[sellerID] = decodeStoredCursor(raw)
		}
	}
	return order, nil
}

func decodeLineItem(fields map[string]any) domain.OrderLineItem {
	price, _ := asNumber(fields["price"])
	qty := asInt(fields["quantity"])
	if qty < 0 {
		qty = 0
	}
	item := domain.OrderLineItem{
		ProductID: strings.TrimSpace(asString(fields["productId"])),
		SellerID:  asString(fields["sellerId"]),
		Quantity:  qty,
		Price:     price,
		Size:      asString(fields["size"]),
	}
	if raw, ok := fields["sizeIndex"]; ok && raw != nil {
		item.SizeIndex = asIndex(raw)
	}
	return item
}

func decodeStoredCursor(raw any) domain.StoredCursor {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return domain.StoredCursor{Kind: domain.CursorAbsent}
		}
		return domain.StoredCursor{Kind: domain.CursorLegacy, Legacy: v}
	case map[string]any:
		ts, _ := asNumber(v["lastProcessedTimestamp"])
		record := domain.InventoryCursor{
			LastStatus:             domain.OrderStatus(asString(v["lastStatus"])),
			LastProcessedTimestamp: int64(ts),
			ProcessedActions:       map[domain.ActionKey]bool{},
		}
		if actions, ok := v["processedActions"].(map[string]any); ok {
			for key, done := range actions {
				if flag, ok := done.(bool); ok {
					record.ProcessedActions[domain.ActionKey(key)] = flag
				}
			}
		}
		return domain.StoredCursor{Kind: domain.CursorStructured, Record: record}
	}
	return domain.StoredCursor{Kind: domain.CursorAbsent}
}

func encodeCursor(cursor domain.InventoryCursor) map[string]any {
	actions := make(map[string]any, len(cursor.ProcessedActions))
	for key, done := range cursor.ProcessedActions {
		actions[string(key)] = done
	}
	var lastStatus any
	if cursor.LastStatus != "" {
		lastStatus = string(cursor.LastStatus)
	}
	return map[string]any{
		"lastStatus":             lastStatus,
		"lastProcessedTimestamp": cursor.LastProcessedTimestamp,
		"processedActions":       actions,
	}
}

func decodeProduct(id string, data map[string]any) (domain.Product, error) {
	product := domain.Product{
		ID:         id,
		SellerID:   asString(data["sellerId"]),
		TotalSales: asInt(data["totalSales"]),
	}

	sizes, sizesIsArray := data["size"].([]any)

	switch q := data["quantity"].(type) {
	case []any:
		product.Quantities = make([]int, len(q))
		for i, v := range q {
			product.Quantities[i] = asInt(v)
		}
	case nil, int64, int, float64, string:
		product.Quantity = asInt(q)
	default:
		return product, repositories.NewInventoryError("products.decode", repositories.InventoryErrorProductDecode,
			fmt.Sprintf("product %s: quantity is %T", id, q), nil)
	}

	if product.Quantities != nil && !sizesIsArray {
		return product, repositories.NewInventoryError("products.decode", repositories.InventoryErrorProductDecode,
			fmt.Sprintf("product %s: quantity array without size array", id), nil)
	}
	if sizesIsArray && product.Quantities != nil {
		product.Variants = true
		product.Sizes = make([]string, len(sizes))
		for i, v := range sizes {
			product.Sizes[i] = asString(v)
		}
	}

	switch p := data["price"].(type) {
	case []any:
		product.Prices = make([]float64, len(p))
		for i, v := range p {
			product.Prices[i], _ = asNumber(v)
		}
	default:
		product.Price, _ = asNumber(p)
	}
	return product, nil
}

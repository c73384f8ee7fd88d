package firestore

import (
	"errors"
	"testing"
	"time"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
)

func TestNormalizeTime(t *testing.T) {
	want := time.Date(2025, time.March, 4, 10, 30, 0, 0, time.UTC)
	millis := want.UnixMilli()

	cases := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "native", value: want.In(time.FixedZone("SGT", 8*3600)), want: want},
		{name: "int millis", value: millis, want: want},
		{name: "float millis", value: float64(millis), want: want},
		{name: "numeric string", value: "1741084200000", want: want},
		{name: "rfc3339", value: "2025-03-04T18:30:00+08:00", want: want},
		{name: "date only", value: "2025-03-04", want: time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)},
		{name: "serialised seconds", value: map[string]any{"seconds": int64(want.Unix()), "nanoseconds": int64(0)}, want: want},
		{name: "admin serialised", value: map[string]any{"_seconds": float64(want.Unix())}, want: want},
		{name: "garbage", value: "yesterday"},
		{name: "zero", value: int64(0)},
		{name: "negative", value: float64(-5)},
		{name: "nil", value: nil},
		{name: "bool", value: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeTime(tc.value)
			if !got.Equal(tc.want) {
				t.Fatalf("normalizeTime(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestDecodeOrder(t *testing.T) {
	updated := time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC)
	data := map[string]any{
		"status":    "to_pay",
		"updatedAt": updated,
		"createdAt": "2025-04-30T08:00:00Z",
		"products": []any{
			map[string]any{"productId": "p1", "sellerId": "s1", "quantity": int64(2), "size": "M", "sizeIndex": int64(1), "price": 12.5},
			map[string]any{"productId": "p2", "sellerId": "s2", "quantity": "3", "size": int64(42), "sizeIndex": 1.5},
			map[string]any{"productId": "p3", "sellerId": "s1", "quantity": float64(-1)},
			"not-an-item",
		},
		"statusLog": []any{
			map[string]any{"status": "to_pay", "time": int64(1714550000000), "by": "buyer"},
			map[string]any{"status": "to_ship", "time": "garbage"},
		},
		"inventoryCursor": map[string]any{
			"s1": "completed",
			"s2": map[string]any{
				"lastStatus":             "to_ship",
				"lastProcessedTimestamp": int64(1714550000000),
				"processedActions":       map[string]any{"to_ship_deduct": true, "completed_sales": "yes"},
			},
			"s3": int64(7),
		},
	}

	order, err := decodeOrder("o1", data)
	if err != nil {
		t.Fatalf("decodeOrder returned error: %v", err)
	}
	if order.ID != "o1" || order.Status != domain.OrderStatusToPay || !order.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected order header: %+v", order)
	}
	if order.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to parse")
	}
	if len(order.Products) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(order.Products))
	}

	first := order.Products[0]
	if first.Quantity != 2 || first.SizeIndex == nil || *first.SizeIndex != 1 || first.Price != 12.5 {
		t.Fatalf("unexpected first item: %+v", first)
	}
	second := order.Products[1]
	if second.Quantity != 3 || second.Size != "42" || second.SizeIndex != nil {
		t.Fatalf("unexpected second item: %+v", second)
	}
	if order.Products[2].Quantity != 0 {
		t.Fatalf("expected negative quantity to decode as 0, got %d", order.Products[2].Quantity)
	}

	if len(order.StatusLog) != 2 || order.StatusLog[0].By != "buyer" || order.StatusLog[0].Time.IsZero() {
		t.Fatalf("unexpected status log: %+v", order.StatusLog)
	}
	if !order.StatusLog[1].Time.IsZero() {
		t.Fatalf("expected unparsable entry time to decode as zero")
	}

	if got := order.InventoryCursor["s1"]; got.Kind != domain.CursorLegacy || got.Legacy != "completed" {
		t.Fatalf("unexpected legacy cursor: %+v", got)
	}
	structured := order.InventoryCursor["s2"]
	if structured.Kind != domain.CursorStructured || structured.Record.LastProcessedTimestamp != 1714550000000 {
		t.Fatalf("unexpected structured cursor: %+v", structured)
	}
	if !structured.Record.ProcessedActions[domain.ActionToShipDeduct] {
		t.Fatalf("expected to_ship_deduct flag")
	}
	if _, ok := structured.Record.ProcessedActions[domain.ActionCompletedSales]; ok {
		t.Fatalf("expected non-boolean action flag to be ignored")
	}
	if order.InventoryCursor["s3"].Kind != domain.CursorAbsent {
		t.Fatalf("expected unknown cursor shape to be treated as absent")
	}
}

func TestDecodeOrderRejectsNonArrayProducts(t *testing.T) {
	_, err := decodeOrder("o1", map[string]any{"products": map[string]any{"0": "x"}})
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorOrderDecode {
		t.Fatalf("expected order decode error, got %v", err)
	}
}

func TestDecodeProduct(t *testing.T) {
	variant, err := decodeProduct("p1", map[string]any{
		"sellerId":   "s1",
		"size":       []any{"S", "M", int64(40)},
		"quantity":   []any{int64(5), 5.0, "5"},
		"price":      []any{10.0, int64(11), "12"},
		"totalSales": int64(4),
	})
	if err != nil {
		t.Fatalf("decodeProduct returned error: %v", err)
	}
	if !variant.Variants || len(variant.Sizes) != 3 || variant.Sizes[2] != "40" {
		t.Fatalf("unexpected variant shape: %+v", variant)
	}
	for i, q := range variant.Quantities {
		if q != 5 {
			t.Fatalf("quantity[%d] = %d, want 5", i, q)
		}
	}
	if variant.Prices[2] != 12 || variant.TotalSales != 4 {
		t.Fatalf("unexpected prices or sales: %+v", variant)
	}

	single, err := decodeProduct("p2", map[string]any{"quantity": "7", "price": 3.5})
	if err != nil {
		t.Fatalf("decodeProduct returned error: %v", err)
	}
	if single.Variants || single.Quantity != 7 || single.Price != 3.5 {
		t.Fatalf("unexpected single product: %+v", single)
	}

	if _, err := decodeProduct("p3", map[string]any{"quantity": []any{int64(1)}}); err == nil {
		t.Fatal("expected quantity array without sizes to fail")
	}
	if _, err := decodeProduct("p4", map[string]any{"quantity": map[string]any{"a": 1}}); err == nil {
		t.Fatal("expected map quantity to fail")
	}
}

func TestProductUpdates(t *testing.T) {
	variant := domain.Product{ID: "p1", Variants: true, Sizes: []string{"S", "M"}, Quantities: []int{1, 2}}
	qty := 3
	sales := 9

	updates, err := productUpdates(variant, domain.ProductPatch{Quantities: []int{1, 0}, TotalSales: &sales})
	if err != nil {
		t.Fatalf("productUpdates returned error: %v", err)
	}
	if len(updates) != 2 || updates[0].Path != "quantity" || updates[1].Path != "totalSales" {
		t.Fatalf("unexpected updates: %+v", updates)
	}

	if _, err := productUpdates(variant, domain.ProductPatch{Quantity: &qty}); err == nil {
		t.Fatal("expected scalar quantity on variant product to fail")
	}
	if _, err := productUpdates(variant, domain.ProductPatch{Quantities: []int{1}}); err == nil {
		t.Fatal("expected mismatched variant length to fail")
	}
	if updates, err := productUpdates(variant, domain.ProductPatch{}); err != nil || updates != nil {
		t.Fatalf("expected empty patch to produce no updates, got %v (%v)", updates, err)
	}
}

func TestEncodeCursor(t *testing.T) {
	encoded := encodeCursor(domain.InventoryCursor{
		LastStatus:             domain.OrderStatusCancelled,
		LastProcessedTimestamp: 42,
		ProcessedActions:       map[domain.ActionKey]bool{domain.ActionCancelledReimburse: true},
	})
	if encoded["lastStatus"] != "cancelled" || encoded["lastProcessedTimestamp"] != int64(42) {
		t.Fatalf("unexpected encoded cursor: %+v", encoded)
	}
	actions := encoded["processedActions"].(map[string]any)
	if actions["cancelled_reimburse"] != true {
		t.Fatalf("unexpected actions: %+v", actions)
	}

	roundTrip := decodeStoredCursor(map[string]any{
		"lastStatus":             encoded["lastStatus"],
		"lastProcessedTimestamp": encoded["lastProcessedTimestamp"],
		"processedActions":       actions,
	})
	if roundTrip.Kind != domain.CursorStructured || roundTrip.Record.LastStatus != domain.OrderStatusCancelled {
		t.Fatalf("unexpected decoded cursor: %+v", roundTrip)
	}

	empty := encodeCursor(domain.InventoryCursor{})
	if empty["lastStatus"] != nil {
		t.Fatalf("expected null lastStatus for empty cursor, got %v", empty["lastStatus"])
	}
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("invalid_request", "seller id\nis required", http.StatusBadRequest).
		WithDetails(map[string]any{"field": "sellerId"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "invalid_request" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	if body["message"] != "seller id is required" {
		t.Fatalf("expected newlines stripped, got %q", body["message"])
	}
	if body["trace_id"] != "trace-1" {
		t.Fatalf("expected trace id from context, got %v", body["trace_id"])
	}
	if body["field"] != "sellerId" {
		t.Fatalf("expected details merged, got %v", body["field"])
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		SellerID string `json:"sellerId"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"sellerId":"seller-1"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"seller":"x"}`, wantErr: true},
		{name: "trailing data", body: `{"sellerId":"a"}{"sellerId":"b"}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
			if !tc.wantErr && dst.SellerID != "seller-1" {
				t.Fatalf("unexpected payload %+v", dst)
			}
		})
	}
}

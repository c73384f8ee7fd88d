package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		name        string
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "not found", code: codes.NotFound, notFound: true},
		{name: "aborted", code: codes.Aborted, conflict: true},
		{name: "precondition", code: codes.FailedPrecondition, conflict: true},
		{name: "unavailable", code: codes.Unavailable, unavailable: true},
		{name: "exhausted", code: codes.ResourceExhausted, unavailable: true},
		{name: "permission", code: codes.PermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapError("products.get", status.Error(tc.code, "boom"))
			var repoErr *Error
			if !errors.As(err, &repoErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if repoErr.IsNotFound() != tc.notFound {
				t.Errorf("IsNotFound = %v, want %v", repoErr.IsNotFound(), tc.notFound)
			}
			if repoErr.IsConflict() != tc.conflict {
				t.Errorf("IsConflict = %v, want %v", repoErr.IsConflict(), tc.conflict)
			}
			if repoErr.IsUnavailable() != tc.unavailable {
				t.Errorf("IsUnavailable = %v, want %v", repoErr.IsUnavailable(), tc.unavailable)
			}
			if repoErr.Code() != tc.code {
				t.Errorf("Code = %v, want %v", repoErr.Code(), tc.code)
			}
		})
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("orders.update", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("orders.update", fmt.Errorf("wrapped: %w", context.DeadlineExceeded)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if WrapError("noop", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestWrapErrorKeepsExistingOperation(t *testing.T) {
	first := WrapError("", status.Error(codes.NotFound, "missing"))
	second := WrapError("transaction", first)
	if second.Error() != "transaction: rpc error: code = NotFound desc = missing" {
		t.Fatalf("unexpected message %q", second.Error())
	}
	if !IsNotFound(fmt.Errorf("outer: %w", second)) {
		t.Fatal("expected IsNotFound through wrapping")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatal("plain errors are not not-found")
	}
}

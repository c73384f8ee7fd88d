package repositories

import "fmt"

// InventoryErrorCode enumerates repository error causes for inventory reconciliation.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorOrderNotFound indicates the order document is missing.
	InventoryErrorOrderNotFound InventoryErrorCode = "inventory_order_not_found"
	// InventoryErrorOrderDecode indicates the order document could not be mapped.
	InventoryErrorOrderDecode InventoryErrorCode = "inventory_order_decode"
	// InventoryErrorProductDecode indicates the product document has an unusable stock shape.
	InventoryErrorProductDecode InventoryErrorCode = "inventory_product_decode"
	// InventoryErrorInvalidPatch indicates a mutation produced a patch that does not fit the product.
	InventoryErrorInvalidPatch InventoryErrorCode = "inventory_invalid_patch"
	// InventoryErrorStreamFailed indicates the live order query terminated unexpectedly.
	InventoryErrorStreamFailed InventoryErrorCode = "inventory_stream_failed"
)

// InventoryError wraps inventory-specific failures with machine readable codes.
type InventoryError struct {
	Op      string
	Code    InventoryErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the error refers to a missing document.
func (e *InventoryError) IsNotFound() bool {
	return e != nil && e.Code == InventoryErrorOrderNotFound
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(op string, code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

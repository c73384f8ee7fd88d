package services

import (
	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
)

// LatestStatus returns the status of the last status log entry. The order's top-level status is
// used when the log is empty or its last entry carries no status. An empty result means the order
// has no status at all.
func LatestStatus(order domain.Order) domain.OrderStatus {
	if n := len(order.StatusLog); n > 0 {
		if status := order.StatusLog[n-1].Status; status != "" {
			return status
		}
	}
	return order.Status
}

// LatestStatusTimestamp returns the time of the last status log entry in epoch milliseconds,
// falling back to updatedAt and then createdAt. Zero means no usable timestamp.
func LatestStatusTimestamp(order domain.Order) int64 {
	if n := len(order.StatusLog); n > 0 {
		if ts := order.StatusLog[n-1].Time; !ts.IsZero() {
			return ts.UnixMilli()
		}
	}
	if !order.UpdatedAt.IsZero() {
		return order.UpdatedAt.UnixMilli()
	}
	if !order.CreatedAt.IsZero() {
		return order.CreatedAt.UnixMilli()
	}
	return 0
}

package services

import (
	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
)

// legacyInferredActions lists the actions considered applied for a bare-string cursor holding the
// given status.
var legacyInferredActions = map[domain.OrderStatus][]domain.ActionKey{
	domain.OrderStatusToShip:    {domain.ActionToShipDeduct},
	domain.OrderStatusToReceive: {domain.ActionToShipDeduct},
	domain.OrderStatusShipped:   {domain.ActionToShipDeduct},
	domain.OrderStatusCompleted: {domain.ActionToShipDeduct, domain.ActionCompletedSales},
	domain.OrderStatusCancelled: {domain.ActionCancelledReimburse},
}

// NormalizeCursor converts the stored cursor into its structured form. A legacy cursor keeps its
// status, gets a zero timestamp, and is credited with the actions its status implies.
func NormalizeCursor(stored domain.StoredCursor) domain.InventoryCursor {
	switch stored.Kind {
	case domain.CursorLegacy:
		status := domain.OrderStatus(stored.Legacy)
		cursor := domain.InventoryCursor{
			LastStatus:       status,
			ProcessedActions: make(map[domain.ActionKey]bool, 2),
		}
		for _, key := range legacyInferredActions[status] {
			cursor.ProcessedActions[key] = true
		}
		return cursor
	case domain.CursorStructured:
		cursor := stored.Record
		cursor.ProcessedActions = make(map[domain.ActionKey]bool, len(stored.Record.ProcessedActions))
		for key, done := range stored.Record.ProcessedActions {
			cursor.ProcessedActions[key] = done
		}
		return cursor
	default:
		return domain.InventoryCursor{ProcessedActions: map[domain.ActionKey]bool{}}
	}
}

// ActionKeyFor maps a lifecycle status to the inventory action it triggers.
func ActionKeyFor(status domain.OrderStatus) (domain.ActionKey, bool) {
	switch status {
	case domain.OrderStatusToShip:
		return domain.ActionToShipDeduct, true
	case domain.OrderStatusCancelled:
		return domain.ActionCancelledReimburse, true
	case domain.OrderStatusCompleted:
		return domain.ActionCompletedSales, true
	default:
		return "", false
	}
}

// HandleOutcome describes what the handling sequence did with an order.
type HandleOutcome string

const (
	OutcomeApplied        HandleOutcome = "applied"
	OutcomeAlreadyApplied HandleOutcome = "already_applied"
	OutcomeNoAction       HandleOutcome = "no_action"
	OutcomeStale          HandleOutcome = "stale"
	OutcomeNoItems        HandleOutcome = "no_items"
	OutcomeNoStatus       HandleOutcome = "no_status"
)

type cursorDecision struct {
	outcome HandleOutcome
	action  domain.ActionKey
}

// apply reports whether the action should mutate products.
func (d cursorDecision) apply() bool {
	return d.outcome == OutcomeApplied
}

// decideAction evaluates the gate in two layers: an order whose latest status timestamp is not
// newer than the cursor is skipped outright, otherwise the action runs only if not yet recorded.
func decideAction(cursor domain.InventoryCursor, status domain.OrderStatus, latestTimestamp int64) cursorDecision {
	if cursor.LastProcessedTimestamp > 0 && cursor.LastProcessedTimestamp >= latestTimestamp {
		return cursorDecision{outcome: OutcomeStale}
	}
	key, ok := ActionKeyFor(status)
	if !ok {
		return cursorDecision{outcome: OutcomeNoAction}
	}
	if cursor.ProcessedActions[key] {
		return cursorDecision{outcome: OutcomeAlreadyApplied, action: key}
	}
	return cursorDecision{outcome: OutcomeApplied, action: key}
}

// advanceCursor returns the record to persist after handling status at latestTimestamp.
func advanceCursor(cursor domain.InventoryCursor, status domain.OrderStatus, latestTimestamp int64, applied ...domain.ActionKey) domain.InventoryCursor {
	next := domain.InventoryCursor{
		LastStatus:             status,
		LastProcessedTimestamp: cursor.LastProcessedTimestamp,
		ProcessedActions:       make(map[domain.ActionKey]bool, len(cursor.ProcessedActions)+len(applied)),
	}
	if latestTimestamp > next.LastProcessedTimestamp {
		next.LastProcessedTimestamp = latestTimestamp
	}
	for key, done := range cursor.ProcessedActions {
		if done {
			next.ProcessedActions[key] = true
		}
	}
	for _, key := range applied {
		next.ProcessedActions[key] = true
	}
	return next
}

// cursorUnchanged reports whether writing next would be a no-op. Legacy cursors are always
// rewritten so they migrate to the structured form.
func cursorUnchanged(stored domain.StoredCursor, next domain.InventoryCursor) bool {
	return stored.Kind == domain.CursorStructured && stored.Record.Equal(next)
}

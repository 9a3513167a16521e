package lifecycle

import "github.com/BearBump/FabOrders/internal/models"

var orderStateTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusNew:        {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusCompleted:  {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

// CanTransition reports whether from -> to is an allowed move. Same status is not a move.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range orderStateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from from in one step.
func AllowedTargets(from models.OrderStatus) []models.OrderStatus {
	next := orderStateTransitions[from]
	out := make([]models.OrderStatus, len(next))
	copy(out, next)
	return out
}

func IsTerminal(s models.OrderStatus) bool {
	next, ok := orderStateTransitions[s]
	return ok && len(next) == 0
}

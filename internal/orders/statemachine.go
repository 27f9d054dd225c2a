package orders

import "github.com/adityamehra/shopkart-backend/pkg/enums"

// allowedTransitions is the forward edge set of the order lifecycle. Delivered
// is additionally reachable from any non-terminal state via MarkDelivered.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAwaitingApproval,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingApproval: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusCancelled,
		enums.OrderStatusRejected,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// cancellableStatuses is the "ongoing" set a customer may cancel from.
var cancellableStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusAwaitingApproval: true,
	enums.OrderStatusConfirmed:        true,
}

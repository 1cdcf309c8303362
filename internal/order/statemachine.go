package order

import (
	"blendshop/internal/errs"
	"blendshop/internal/models"
)

// transitions is the authoritative status graph. An edge missing here is a
// rejected transition; a target equal to the current status is a no-op
// success so replayed gateway events stay harmless.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending: {
		models.StatusAwaitingPayment,
		models.StatusPaid,
		models.StatusPaymentFailed,
		models.StatusCancelled,
	},
	models.StatusAwaitingPayment: {
		models.StatusPaid,
		models.StatusPaymentFailed,
		models.StatusCancelled,
	},
	models.StatusPaid: {
		models.StatusProcessing,
		models.StatusShipped,
		models.StatusCancelled,
		models.StatusRefunded,
		models.StatusPartiallyRefunded,
	},
	models.StatusProcessing: {
		models.StatusShipped,
		models.StatusCancelled,
		models.StatusRefunded,
		models.StatusPartiallyRefunded,
	},
	models.StatusShipped: {
		models.StatusCompleted,
		models.StatusRefunded,
		models.StatusPartiallyRefunded,
	},
	models.StatusCompleted: {
		models.StatusRefunded,
		models.StatusPartiallyRefunded,
	},
	// Inventory is restocked when payment fails, so a failed order does not
	// re-enter the payment flow; the client checks out again.
	models.StatusPaymentFailed: {
		models.StatusCancelled,
	},
	models.StatusPartiallyRefunded: {
		models.StatusShipped,
		models.StatusCompleted,
		models.StatusRefunded,
	},
	models.StatusCancelled: {},
	models.StatusRefunded:  {},
}

// CanTransition reports whether the edge exists in the table. Same-state is
// not an edge; callers use Transition to get the no-op semantics.
func CanTransition(from, to models.OrderStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates a status change. It returns changed=false with no
// error when the order is already in the target state, which is what makes
// webhook replay safe, and InvalidTransitionError for any edge not in the
// table.
func Transition(from, to models.OrderStatus) (bool, error) {
	if from == to {
		return false, nil
	}
	if !CanTransition(from, to) {
		return false, errs.InvalidTransition(string(from), string(to))
	}
	return true, nil
}

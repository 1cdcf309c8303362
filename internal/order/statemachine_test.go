package order

import (
	"testing"

	"blendshop/internal/errs"
	"blendshop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []models.OrderStatus{
	models.StatusPending,
	models.StatusAwaitingPayment,
	models.StatusPaid,
	models.StatusProcessing,
	models.StatusShipped,
	models.StatusCompleted,
	models.StatusPaymentFailed,
	models.StatusCancelled,
	models.StatusRefunded,
	models.StatusPartiallyRefunded,
}

// Every status pair resolves to exactly one of: no-op, allowed, or a typed
// rejection. Nothing falls through.
func TestTransition_Totality(t *testing.T) {
	for _, from := range allStatuses {
		_, known := transitions[from]
		assert.True(t, known, "status %s is missing from the transition table", from)

		for _, to := range allStatuses {
			changed, err := Transition(from, to)

			if from == to {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.False(t, changed, "same-state must be a no-op")
				continue
			}
			if CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.True(t, changed)
			} else {
				require.Error(t, err, "%s -> %s", from, to)
				assert.True(t, errs.IsKind(err, errs.KindInvalidTransition))
				assert.False(t, changed)
			}
		}
	}
}

func TestTransition_SameStateNoOp(t *testing.T) {
	changed, err := Transition(models.StatusPaid, models.StatusPaid)
	assert.NoError(t, err)
	assert.False(t, changed)

	changed, err = Transition(models.StatusRefunded, models.StatusRefunded)
	assert.NoError(t, err)
	assert.False(t, changed)
}

func TestTransition_RejectsBackwardEdges(t *testing.T) {
	_, err := Transition(models.StatusShipped, models.StatusPending)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidTransition))

	_, err = Transition(models.StatusCancelled, models.StatusPaid)
	require.Error(t, err)

	_, err = Transition(models.StatusRefunded, models.StatusShipped)
	require.Error(t, err)
}

func TestTransition_PaymentFlow(t *testing.T) {
	changed, err := Transition(models.StatusPending, models.StatusAwaitingPayment)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Transition(models.StatusAwaitingPayment, models.StatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Transition(models.StatusAwaitingPayment, models.StatusPaymentFailed)
	require.NoError(t, err)
	assert.True(t, changed)

	// A failed payment released its stock; the order cannot rejoin the
	// payment flow.
	_, err = Transition(models.StatusPaymentFailed, models.StatusAwaitingPayment)
	require.Error(t, err)

	changed, err = Transition(models.StatusPaymentFailed, models.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestTransition_RefundEdges(t *testing.T) {
	for _, from := range []models.OrderStatus{models.StatusPaid, models.StatusProcessing, models.StatusShipped, models.StatusCompleted, models.StatusPartiallyRefunded} {
		changed, err := Transition(from, models.StatusRefunded)
		require.NoError(t, err, "from %s", from)
		assert.True(t, changed)
	}

	// partially_refunded can still move through fulfillment
	changed, err := Transition(models.StatusPartiallyRefunded, models.StatusShipped)
	require.NoError(t, err)
	assert.True(t, changed)
}

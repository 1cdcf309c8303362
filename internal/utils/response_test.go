package utils

import (
	"errors"
	"testing"

	"blendshop/internal/errs"

	"github.com/stretchr/testify/assert"
)

func TestFailureResponse_CarriesTaxonomyKind(t *testing.T) {
	resp := FailureResponse("Could not place order", errs.Validation("quantity must be positive"))

	assert.False(t, resp.Success)
	assert.Equal(t, "Could not place order", resp.Message)
	assert.Equal(t, "quantity must be positive", resp.Error)
	assert.Equal(t, string(errs.KindValidation), resp.Kind)
}

func TestFailureResponse_UnclassifiedErrorStaysGeneric(t *testing.T) {
	resp := FailureResponse("Could not get order", errors.New("pq: connection reset"))

	assert.Equal(t, "internal error", resp.Error, "internal detail must not leak")
	assert.Empty(t, resp.Kind)
}

func TestSuccessResponse(t *testing.T) {
	resp := SuccessResponse("Order created", map[string]string{"order_id": "o-1"})

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Kind)
	assert.False(t, resp.Timestamp.IsZero())
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashClientSecret(t *testing.T) {
	h1 := HashClientSecret("pi_123_secret_abc")
	h2 := HashClientSecret("pi_123_secret_abc")
	h3 := HashClientSecret("pi_123_secret_xyz")

	assert.Len(t, h1, 64, "sha256 hex digest is 64 characters")
	assert.Equal(t, h1, h2, "hashing is deterministic")
	assert.NotEqual(t, h1, h3, "different secrets hash differently")
	assert.NotContains(t, h1, "secret", "hash must not leak the secret")
}

func TestIntentUsable(t *testing.T) {
	assert.True(t, IntentUsable("requires_payment_method"))
	assert.True(t, IntentUsable("requires_confirmation"))
	assert.True(t, IntentUsable("processing"))

	assert.False(t, IntentUsable("succeeded"), "a settled intent cannot be reused")
	assert.False(t, IntentUsable("canceled"), "a cancelled intent cannot be reused")
}

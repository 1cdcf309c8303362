package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"blendshop/internal/models"
)

// Intent is the gateway's handle for authorizing a payment. ClientSecret is
// only ever returned to the checkout caller; the order row keeps a one-way
// hash.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
}

type RefundResult struct {
	ID          string
	AmountCents int64
	Status      string
}

// Gateway is the injected payment-provider client. Keeping it an interface
// (instead of a process-wide SDK singleton) is what makes the adapter
// test-doubleable.
type Gateway interface {
	// CreateIntent authorizes order.TotalCents with the provider. Never
	// called twice for the same order/amount pair; getOrCreate logic lives
	// in the order service.
	CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*Intent, error)

	// GetIntent retrieves the current provider-side state of an intent.
	GetIntent(ctx context.Context, intentID string) (*Intent, error)

	// VerifyEvent checks the signature and freshness of a raw webhook
	// delivery and maps it to a provider-neutral event. This is the sole
	// trust boundary for inbound events.
	VerifyEvent(payload []byte, signatureHeader string) (*models.GatewayEvent, error)

	// Refund issues a refund against the intent at the provider. Local
	// refund effects are only applied after this returns success.
	Refund(ctx context.Context, intentID string, amountCents int64, reason string) (*RefundResult, error)
}

// HashClientSecret stores a comparable fingerprint of the secret without
// keeping the secret itself recoverable.
func HashClientSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IntentUsable reports whether an existing intent can still be handed back to
// the client instead of creating a new one.
func IntentUsable(status string) bool {
	switch status {
	case "canceled", "succeeded":
		return false
	}
	return true
}

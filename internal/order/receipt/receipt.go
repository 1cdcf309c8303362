package receipt

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Generate renders a QR code pointing at the public status page for a paid
// order. Customers scan it from the confirmation email to track the order.
func Generate(orderID, publicBaseURL string) ([]byte, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	base := strings.TrimRight(publicBaseURL, "/")
	url := fmt.Sprintf("%s/payments/status/%s", base, orderID)

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt QR: %w", err)
	}
	return png, nil
}

package utils

import (
	"time"

	"blendshop/internal/errs"
)

// APIResponse is the envelope both HTTP surfaces answer with. Failures carry
// the error-taxonomy kind so clients can branch on it (retry on
// payment_gateway, fix input on validation) without parsing message text.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ErrorResponse builds a failure envelope from free-form detail, for failures
// that never passed through the error taxonomy (malformed request bodies).
func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     detail,
		Timestamp: time.Now(),
	}
}

// FailureResponse builds the failure envelope for a classified error: the
// public message only, never the internal one, plus the taxonomy kind.
func FailureResponse(message string, err error) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     errs.PublicMessage(err),
		Kind:      string(errs.KindOf(err)),
		Timestamp: time.Now(),
	}
}

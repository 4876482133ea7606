package stripe

import (
	"errors"
	"fmt"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Error codes used across the package.
const (
	CodeWebhookValidation = "webhook_validation"
	CodeInvalidEvent      = "invalid_event"
	CodeAPICallFailed     = "api_call_failed"
	CodeCustomerNotFound  = "customer_not_found"
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsSignatureError reports whether err is a webhook signature validation
// failure, which the HTTP handler must answer with 400 instead of 500.
func IsSignatureError(err error) bool {
	var stripeErr *StripeError
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == CodeWebhookValidation
	}
	return false
}

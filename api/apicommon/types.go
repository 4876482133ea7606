// Package apicommon holds the request and response types of the HTTP API,
// plus small helpers shared by the handlers.
package apicommon

import (
	"github.com/keepsakeprints/backend/db"
)

// CheckoutRequest is the body of a one-time print purchase checkout.
type CheckoutRequest struct {
	ProductID string `json:"productID"`
	MemoryID  string `json:"memoryID"`
}

// SubscriptionCheckoutRequest is the body of a subscription checkout.
type SubscriptionCheckoutRequest struct {
	PackageID    string `json:"packageID"`
	BillingCycle string `json:"billingCycle"`
}

// CancelOrderRequest is the body of an admin order cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// RefundOrderRequest is the body of an admin refund. Amount is in the
// currency's minor unit. PaymentIntentID is optional and defaults to the
// one recorded on the order.
type RefundOrderRequest struct {
	PaymentIntentID string `json:"paymentIntentID,omitempty"`
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason"`
}

// OrdersResponse wraps an order listing.
type OrdersResponse struct {
	Orders []*db.Order `json:"orders"`
}

// SubscriptionsResponse wraps a subscription listing.
type SubscriptionsResponse struct {
	Subscriptions []*db.Subscription `json:"subscriptions"`
}

// AuditEntriesResponse wraps the audit trail of an order.
type AuditEntriesResponse struct {
	Entries []*db.AuditEntry `json:"entries"`
}

package db

import "time"

const defaultTimeout = 10 * time.Second

const (
	// order lifecycle
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	// terminal side branches
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
	// payment captured but fulfillment not settled; never conflated with
	// pending or paid
	OrderStatusNeedsReview        OrderStatus = "needs_review"
	OrderStatusFulfillmentPending OrderStatus = "fulfillment_pending"
	OrderStatusFulfillmentFailed  OrderStatus = "fulfillment_failed"

	// subscription statuses, mirroring the provider's vocabulary
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"

	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// orderTransitions is the legal order state machine. Transitions are
// monotonic; the only states reachable more than one hop back are the
// terminal cancel/refund branches.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusPaid, OrderStatusFulfillmentPending, OrderStatusFulfillmentFailed,
		OrderStatusNeedsReview, OrderStatusCancelled, OrderStatusRefunded,
	},
	OrderStatusFulfillmentPending: {
		OrderStatusPaid, OrderStatusFulfillmentFailed, OrderStatusCancelled, OrderStatusRefunded,
	},
	OrderStatusFulfillmentFailed: {OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusNeedsReview:       {OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusPaid:              {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing:        {OrderStatusShipped},
	OrderStatusShipped:           {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// statusesAllowing returns every status from which the given target status is
// reachable, used to build conditional update filters.
func statusesAllowing(to OrderStatus) []OrderStatus {
	var from []OrderStatus
	for status, nexts := range orderTransitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, status)
				break
			}
		}
	}
	return from
}

// SubscriptionStatusFromProvider maps a provider subscription status string
// to the local enum, defaulting to unpaid for anything unknown.
func SubscriptionStatusFromProvider(status string) SubscriptionStatus {
	switch SubscriptionStatus(status) {
	case SubscriptionStatusActive, SubscriptionStatusCanceled,
		SubscriptionStatusPastDue, SubscriptionStatusUnpaid,
		SubscriptionStatusTrialing:
		return SubscriptionStatus(status)
	default:
		return SubscriptionStatusUnpaid
	}
}

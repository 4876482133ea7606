package api

const (
	// ping route
	pingEndpoint = "/ping"

	// POST /checkout creates a one-time print purchase checkout session
	checkoutEndpoint = "/checkout"
	// GET /checkout/{sessionID} returns the provider-side session status
	checkoutSessionEndpoint = "/checkout/{sessionID}"
	// POST /subscriptions/checkout creates a subscription checkout session
	subscriptionCheckoutEndpoint = "/subscriptions/checkout"
	// GET /subscriptions/me lists the authenticated user's subscriptions
	mySubscriptionsEndpoint = "/subscriptions/me"
	// GET /orders lists the authenticated user's orders
	ordersEndpoint = "/orders"

	// POST /webhook/stripe receives payment provider events
	stripeWebhookEndpoint = "/webhook/stripe"

	// GET /admin/orders lists orders, optionally filtered by ?status=
	adminOrdersEndpoint = "/admin/orders"
	// GET /admin/orders/{orderID}/audit returns an order's audit trail
	adminOrderAuditEndpoint = "/admin/orders/{orderID}/audit"
	// POST /admin/orders/{orderID}/cancel soft-cancels an order
	adminOrderCancelEndpoint = "/admin/orders/{orderID}/cancel"
	// POST /admin/orders/{orderID}/refund refunds an order's payment
	adminOrderRefundEndpoint = "/admin/orders/{orderID}/refund"
	// DELETE /admin/orders/{orderID} hard-deletes an order row
	adminOrderEndpoint = "/admin/orders/{orderID}"
)

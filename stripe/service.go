// Package stripe integrates the payment provider: checkout session creation,
// webhook ingestion, subscription lifecycle sync, and refund compensations.
package stripe

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/errors"
	"github.com/keepsakeprints/backend/fulfillment"
	"github.com/keepsakeprints/backend/internal"
	"github.com/keepsakeprints/backend/notifications"
)

// Service provides the main business logic for payment operations
type Service struct {
	client          *Client
	db              *db.MongoStorage
	fulfiller       *fulfillment.Client
	mailer          notifications.NotificationService
	lockManager     *LockManager
	processedEvents *MemoryEventStore
	config          *Config
}

// NewService creates a new Stripe service. The mailer may be nil, in which
// case no confirmation mail is ever sent.
func NewService(
	config *Config, database *db.MongoStorage,
	fulfiller *fulfillment.Client, mailer notifications.NotificationService,
) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if fulfiller == nil {
		return nil, fmt.Errorf("fulfillment client is required")
	}

	return &Service{
		client:          NewClient(config),
		db:              database,
		fulfiller:       fulfiller,
		mailer:          mailer,
		lockManager:     NewLockManager(),
		processedEvents: NewMemoryEventStore(0),
		config:          config,
	}, nil
}

// CheckoutIntent is what the buyer needs to continue: a hosted checkout URL,
// or a direct redirect when no provider session is involved.
type CheckoutIntent struct {
	SessionID string `json:"sessionID,omitempty"`
	URL       string `json:"url"`
}

// CreateCheckout creates a one-time purchase checkout session for printing
// one of the user's memories. The provider call happens first; the local
// pending order row is best-effort bookkeeping and its failure never blocks
// handing the checkout URL to the buyer, because the provider has already
// committed to the session.
func (s *Service) CreateCheckout(user *db.User, productID, memoryID string) (*CheckoutIntent, error) {
	product, err := s.db.Product(productID)
	if err != nil {
		return nil, errors.ErrProductNotFound.WithErr(err)
	}
	if !product.Active {
		return nil, errors.ErrProductNotFound.Withf("product %s is not for sale", productID)
	}
	memory, err := s.db.Memory(memoryID)
	if err != nil {
		return nil, errors.ErrMemoryNotFound.WithErr(err)
	}
	if memory.UserID != user.ID {
		return nil, errors.ErrMemoryNotFound.Withf("memory %s does not belong to user %s", memoryID, user.ID)
	}
	if !internal.IsValidPrice(int64(product.Price)) || product.Price == 0 {
		return nil, errors.ErrInvalidPrice.Withf("product %s has price %d", productID, product.Price)
	}

	currency := product.Currency
	if currency == "" {
		currency = internal.DefaultCurrency
	}
	session, err := s.client.CreatePaymentCheckoutSession(&PaymentCheckoutParams{
		UserID:               user.ID,
		MemoryID:             memory.ID,
		ProductID:            product.ID,
		ProductName:          product.Name,
		ProductDescription:   product.Description,
		ImageURL:             memory.ImageURL,
		FulfillmentVariantID: product.FulfillmentVariantID,
		Amount:               product.Price,
		Currency:             currency,
		CustomerEmail:        user.Email,
	})
	if err != nil {
		return nil, errors.ErrStripeError.WithErr(err)
	}

	// Best-effort bookkeeping: the webhook handler can reconstruct the order
	// from session metadata, so this write is allowed to fail.
	order := &db.Order{
		CheckoutSessionID:    session.ID,
		UserID:               user.ID,
		MemoryID:             memory.ID,
		ProductID:            product.ID,
		CustomerEmail:        user.Email,
		CustomerName:         user.Name,
		Currency:             currency,
		FulfillmentVariantID: product.FulfillmentVariantID,
		MemoryTitle:          memory.Title,
		MemoryImageURL:       memory.ImageURL,
		ProductName:          product.Name,
	}
	if err := s.db.CreateOrder(order); err != nil {
		log.Warnw("could not record pending order for checkout session",
			"session", session.ID, "user", user.ID, "error", err.Error())
	}

	return &CheckoutIntent{SessionID: session.ID, URL: session.URL}, nil
}

// CreateSubscriptionCheckout creates a subscription checkout session for
// the chosen package and billing cycle. A zero-price cycle activates the
// free tier with a plain redirect, no provider call and no subscription row.
// A package missing its provider price object degrades to a pending-setup
// redirect instead of failing outright.
func (s *Service) CreateSubscriptionCheckout(
	user *db.User, packageID string, cycle db.BillingCycle,
) (*CheckoutIntent, error) {
	if cycle != db.BillingCycleMonthly && cycle != db.BillingCycleYearly {
		return nil, errors.ErrInvalidBillingCycle.Withf("unknown billing cycle %q", cycle)
	}
	pkg, err := s.db.GetPackage(packageID)
	if err != nil {
		return nil, errors.ErrPackageNotFound.WithErr(err)
	}

	if pkg.Price(cycle) == 0 {
		log.Infow("free tier activation, skipping payment provider",
			"user", user.ID, "package", pkg.ID)
		return &CheckoutIntent{URL: s.config.SuccessURL + "?plan=free"}, nil
	}

	priceID := pkg.StripePriceID(cycle)
	if priceID == "" {
		log.Warnw("package has no provider price, redirecting to pending setup",
			"package", pkg.ID, "cycle", string(cycle))
		return &CheckoutIntent{URL: s.config.SuccessURL + "?plan=pending-setup"}, nil
	}

	session, err := s.client.CreateSubscriptionCheckoutSession(&SubscriptionCheckoutParams{
		UserID:        user.ID,
		PackageID:     pkg.ID,
		PackageName:   pkg.Name,
		BillingCycle:  string(cycle),
		PriceID:       priceID,
		CustomerEmail: user.Email,
	})
	if err != nil {
		return nil, errors.ErrStripeError.WithErr(err)
	}
	return &CheckoutIntent{SessionID: session.ID, URL: session.URL}, nil
}

// GetCheckoutSession retrieves a checkout session status from the provider.
func (s *Service) GetCheckoutSession(sessionID string) (*CheckoutSessionStatus, error) {
	return s.client.GetCheckoutSession(sessionID)
}

// CompensationResult is the structured answer to an admin compensating
// action. Business failures are reported here, never silently.
type CompensationResult struct {
	OrderID  string `json:"orderID"`
	Action   string `json:"action"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	RefundID string `json:"refundID,omitempty"`
}

// CancelOrder soft-cancels an order on behalf of an admin. The row is kept
// for audit history; the transition is guarded by the state machine, so an
// order already in production cannot be cancelled here. This handler does
// not call the payment provider: when the order was ever paid, a separate
// refund may still be required and is logged as such.
func (s *Service) CancelOrder(ctx context.Context, admin *db.User, orderID primitive.ObjectID, reason string) (*CompensationResult, error) {
	result := &CompensationResult{OrderID: orderID.Hex(), Action: "order.cancel"}

	order, err := s.db.Order(orderID)
	if err != nil {
		result.Reason = fmt.Sprintf("order not found: %v", err)
		return result, nil
	}
	if order.Status != db.OrderStatusPending {
		log.Warnw("cancelling an order with captured payment, a provider-side refund may be required",
			"order", orderID.Hex(), "status", string(order.Status), "admin", admin.ID)
	}
	if err := s.db.SetOrderStatus(orderID, db.OrderStatusCancelled, reason); err != nil {
		if err == db.ErrInvalidTransition {
			result.Reason = fmt.Sprintf("order in status %s cannot be cancelled", order.Status)
			return result, nil
		}
		return nil, errors.ErrInternalStorageError.WithErr(err)
	}
	s.audit(ctx, admin.ID, "order.cancel", orderID.Hex(), reason)

	result.Success = true
	return result, nil
}

// RefundOrder refunds a payment through the provider and marks the order
// refunded. The amount is taken as given and deliberately not cross-checked
// against the order's recorded amountPaid.
func (s *Service) RefundOrder(
	ctx context.Context, admin *db.User, orderID primitive.ObjectID,
	paymentIntentID string, amount internal.Cents, reason string,
) (*CompensationResult, error) {
	result := &CompensationResult{OrderID: orderID.Hex(), Action: "order.refund"}

	order, err := s.db.Order(orderID)
	if err != nil {
		result.Reason = fmt.Sprintf("order not found: %v", err)
		return result, nil
	}
	if paymentIntentID == "" {
		paymentIntentID = order.PaymentIntentID
	}
	if paymentIntentID == "" {
		result.Reason = "order has no payment intent to refund"
		return result, nil
	}
	if !db.CanTransition(order.Status, db.OrderStatusRefunded) {
		result.Reason = fmt.Sprintf("order in status %s cannot be refunded", order.Status)
		return result, nil
	}

	refund, err := s.client.RefundPayment(paymentIntentID, amount, reason)
	if err != nil {
		result.Reason = fmt.Sprintf("provider refund failed: %v", err)
		return result, nil
	}
	result.RefundID = refund.ID

	if err := s.db.SetOrderStatus(orderID, db.OrderStatusRefunded, reason); err != nil {
		// the provider refund already went through, surface that loudly
		log.Errorf("refund %s executed but order %s could not be marked refunded: %v",
			refund.ID, orderID.Hex(), err)
		result.Reason = fmt.Sprintf("refund %s executed but local update failed: %v", refund.ID, err)
		return result, nil
	}
	s.audit(ctx, admin.ID, "order.refund", orderID.Hex(), reason)

	result.Success = true
	return result, nil
}

// HardDeleteOrder removes the order row entirely. Deletion destroys audit
// history, so it is a separate explicitly-audited action rather than part
// of cancel.
func (s *Service) HardDeleteOrder(ctx context.Context, admin *db.User, orderID primitive.ObjectID, reason string) (*CompensationResult, error) {
	result := &CompensationResult{OrderID: orderID.Hex(), Action: "order.delete"}

	if _, err := s.db.Order(orderID); err != nil {
		result.Reason = fmt.Sprintf("order not found: %v", err)
		return result, nil
	}
	// audit first so the trail survives even if the delete races
	s.audit(ctx, admin.ID, "order.delete", orderID.Hex(), reason)
	if err := s.db.DeleteOrder(orderID); err != nil {
		return nil, errors.ErrInternalStorageError.WithErr(err)
	}

	result.Success = true
	return result, nil
}

// audit records an admin compensation, best effort.
func (s *Service) audit(_ context.Context, adminID, action, orderID, reason string) {
	if err := s.db.AddAuditEntry(&db.AuditEntry{
		AdminID: adminID,
		Action:  action,
		OrderID: orderID,
		Reason:  reason,
	}); err != nil {
		log.Warnw("could not record audit entry",
			"action", action, "order", orderID, "error", err.Error())
	}
}

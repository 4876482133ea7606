package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/fulfillment"
	"github.com/keepsakeprints/backend/internal"
	"github.com/keepsakeprints/backend/notifications"
)

// fulfillTimeout bounds the synchronous fulfillment call made from the
// webhook path. Providers expect the webhook acknowledged within seconds,
// so anything slower is parked for the retry worker instead.
const fulfillTimeout = 30 * time.Second

// HandleWebhookEvent verifies, deduplicates, and dispatches one webhook
// delivery. Signature verification happens before any state change; a
// failure there returns a StripeError the HTTP handler answers with 400.
func (s *Service) HandleWebhookEvent(payload []byte, signatureHeader string) error {
	event, err := s.client.ValidateWebhookEvent(payload, signatureHeader)
	if err != nil {
		return err
	}

	if s.processedEvents.EventExists(event.ID) {
		log.Debugf("stripe webhook: event %s already processed, skipping", event.ID)
		return nil
	}

	if err := s.handleEvent(event); err != nil {
		return err
	}

	// Mark only fully applied events, so a transient failure stays eligible
	// for the provider's redelivery.
	s.processedEvents.MarkProcessed(event.ID)

	return nil
}

// handleEvent dispatches by event type. Unrecognized types are acknowledged
// with no side effect; answering them with an error would put the provider
// into indefinite retries.
func (s *Service) handleEvent(event *stripeapi.Event) error {
	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(event)
	case stripeapi.EventTypeCustomerSubscriptionCreated,
		stripeapi.EventTypeCustomerSubscriptionUpdated:
		return s.handleSubscriptionChange(event)
	case stripeapi.EventTypeCustomerSubscriptionDeleted:
		return s.handleSubscriptionDeleted(event)
	default:
		log.Debugf("stripe webhook: received unhandled event type %s (id %s)", event.Type, event.ID)
		return nil
	}
}

// handleCheckoutCompleted drives payment confirmation to fulfillment for a
// one-time purchase. Every step is idempotent and checkpointed in the order
// row keyed by the session id, so a duplicate or interrupted delivery
// resumes instead of double-applying.
func (s *Service) handleCheckoutCompleted(event *stripeapi.Event) error {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return NewStripeError(CodeInvalidEvent, "failed to parse checkout session from event", err)
	}
	if session.Mode == stripeapi.CheckoutSessionModeSubscription {
		// subscription activation arrives via customer.subscription events
		return nil
	}

	unlock := s.lockManager.Lock(session.ID)
	defer unlock()

	// Idempotency: a session already past the pending family is settled.
	existing, err := s.db.OrderByCheckoutSession(session.ID)
	if err == nil && orderSettled(existing.Status) {
		log.Debugf("stripe webhook: order for session %s already in status %s, skipping",
			session.ID, existing.Status)
		return nil
	}

	meta := session.Metadata
	missing := missingMetadataKeys(meta, "userID", "memoryID", "productID", "fulfillmentVariantID")
	if len(missing) > 0 {
		// Fatal for this event: acknowledge to stop redeliveries, but keep
		// the order visible for a human instead of dropping it.
		s.markNeedsReview(session.ID, fmt.Sprintf("checkout metadata missing: %s", strings.Join(missing, ", ")))
		return nil
	}

	order := s.buildOrderCheckpoint(&session, existing)

	product, err := s.db.Product(meta["productID"])
	if err != nil {
		s.markNeedsReview(session.ID, fmt.Sprintf("unknown product %s", meta["productID"]))
		return nil
	}
	order.ProductName = product.Name
	memory, err := s.db.Memory(meta["memoryID"])
	if err != nil {
		s.markNeedsReview(session.ID, fmt.Sprintf("unknown memory %s", meta["memoryID"]))
		return nil
	}
	order.MemoryTitle = memory.Title
	if order.MemoryImageURL == "" {
		order.MemoryImageURL = memory.ImageURL
	}

	// Durable checkpoint before the external call: everything needed to
	// (re)place the fulfillment order now lives in the row.
	if existing == nil {
		if err := s.db.CreateOrder(order); err != nil && err != db.ErrAlreadyExists {
			return fmt.Errorf("failed to checkpoint order for session %s: %w", session.ID, err)
		}
	} else {
		if err := s.db.UpdateOrderCheckpoint(order); err != nil {
			return fmt.Errorf("failed to checkpoint order for session %s: %w", session.ID, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), fulfillTimeout)
	defer cancel()
	resp, err := s.fulfiller.CreateOrder(ctx, fulfillment.RequestFromOrder(order))
	if err != nil {
		if fulfillment.IsTransient(err) {
			// payment is captured and cannot be dropped; park the order for
			// the background retry worker and acknowledge the event
			log.Warnw("fulfillment provider unavailable, parking order for retry",
				"session", session.ID, "error", err.Error())
			if dbErr := s.db.SetOrderStatusBySession(session.ID,
				db.OrderStatusFulfillmentPending, err.Error()); dbErr != nil {
				return fmt.Errorf("failed to park order %s for retry: %w", session.ID, dbErr)
			}
			return nil
		}
		log.Warnw("fulfillment provider rejected order",
			"session", session.ID, "error", err.Error())
		if dbErr := s.db.SetOrderStatusBySession(session.ID,
			db.OrderStatusFulfillmentFailed, err.Error()); dbErr != nil {
			return fmt.Errorf("failed to mark order %s as failed: %w", session.ID, dbErr)
		}
		return nil
	}

	fulfillmentOrderID := fmt.Sprintf("%d", resp.ID)
	if err := s.db.MarkOrderPaid(session.ID, fulfillmentOrderID, internal.Cents(session.AmountTotal)); err != nil {
		if err == db.ErrNotFound {
			// a concurrent duplicate delivery won the transition
			log.Debugf("stripe webhook: order for session %s already settled concurrently", session.ID)
			return nil
		}
		return fmt.Errorf("failed to mark order %s paid: %w", session.ID, err)
	}
	log.Infow("order paid and fulfillment placed",
		"session", session.ID,
		"fulfillmentOrder", fulfillmentOrderID,
		"amount", session.AmountTotal)

	if s.mailer != nil && order.CustomerEmail != "" {
		order.AmountPaid = internal.Cents(session.AmountTotal)
		if err := s.mailer.SendNotification(ctx, notifications.OrderConfirmation(order)); err != nil {
			log.Warnw("could not send order confirmation",
				"to", order.CustomerEmail, "error", err.Error())
		}
	}
	return nil
}

// buildOrderCheckpoint merges the checkout session's customer and shipping
// details into the order row created at checkout time, or starts a fresh one
// when the best-effort insert never happened.
func (s *Service) buildOrderCheckpoint(session *stripeapi.CheckoutSession, existing *db.Order) *db.Order {
	order := existing
	if order == nil {
		order = &db.Order{CheckoutSessionID: session.ID}
	}
	meta := session.Metadata
	order.UserID = meta["userID"]
	order.MemoryID = meta["memoryID"]
	order.ProductID = meta["productID"]
	order.FulfillmentVariantID = meta["fulfillmentVariantID"]
	if meta["imageURL"] != "" {
		order.MemoryImageURL = meta["imageURL"]
	}
	order.AmountPaid = internal.Cents(session.AmountTotal)
	if session.Currency != "" {
		order.Currency = string(session.Currency)
	}
	if session.CustomerDetails != nil {
		order.CustomerEmail = session.CustomerDetails.Email
		order.CustomerName = session.CustomerDetails.Name
	}
	if session.PaymentIntent != nil {
		order.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.ShippingDetails != nil && session.ShippingDetails.Address != nil {
		order.ShippingAddress = db.ShippingAddress{
			Name:       session.ShippingDetails.Name,
			Line1:      session.ShippingDetails.Address.Line1,
			Line2:      session.ShippingDetails.Address.Line2,
			City:       session.ShippingDetails.Address.City,
			State:      session.ShippingDetails.Address.State,
			PostalCode: session.ShippingDetails.Address.PostalCode,
			Country:    session.ShippingDetails.Address.Country,
		}
	}
	return order
}

// markNeedsReview parks the session's order for manual review, creating the
// row first when the best-effort checkout insert never happened.
func (s *Service) markNeedsReview(sessionID, reason string) {
	log.Warnw("parking order for manual review", "session", sessionID, "reason", reason)
	err := s.db.SetOrderStatusBySession(sessionID, db.OrderStatusNeedsReview, reason)
	if err == db.ErrNotFound {
		err = s.db.CreateOrder(&db.Order{
			CheckoutSessionID: sessionID,
			Status:            db.OrderStatusNeedsReview,
			ReviewReason:      reason,
		})
	}
	if err != nil {
		log.Errorf("could not mark order for session %s as needing review: %v", sessionID, err)
	}
}

// orderSettled reports whether the checkout.session.completed event was
// already applied to the order. Anything past pending counts: paid means
// done, fulfillment_pending belongs to the retry worker, and needs_review
// belongs to a human.
func orderSettled(status db.OrderStatus) bool {
	return status != db.OrderStatusPending
}

// missingMetadataKeys returns the required keys absent from the metadata bag.
func missingMetadataKeys(meta map[string]string, keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if meta[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

package stripe

import (
	"encoding/json"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/internal"
)

// subscriptionEventInfo is what the sync coordinator needs from a provider
// subscription lifecycle event.
type subscriptionEventInfo struct {
	ID           string
	CustomerID   string
	UserID       string
	PackageID    string
	PackageName  string
	BillingCycle db.BillingCycle
	Status       stripeapi.SubscriptionStatus
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Amount       internal.Cents
}

// parseSubscriptionFromEvent extracts subscription information from a
// lifecycle event. The user is resolved from the metadata planted at
// checkout, falling back to the provider customer id when an older
// subscription predates the metadata.
func (s *Service) parseSubscriptionFromEvent(event *stripeapi.Event) (*subscriptionEventInfo, error) {
	var subscription stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return nil, NewStripeError(CodeInvalidEvent, "failed to parse subscription from event", err)
	}

	info := &subscriptionEventInfo{
		ID:          subscription.ID,
		Status:      subscription.Status,
		UserID:      subscription.Metadata["userID"],
		PackageID:   subscription.Metadata["packageID"],
		PackageName: subscription.Metadata["packageName"],
		PeriodStart: time.Unix(subscription.CurrentPeriodStart, 0),
		PeriodEnd:   time.Unix(subscription.CurrentPeriodEnd, 0),
	}
	if subscription.Customer != nil {
		info.CustomerID = subscription.Customer.ID
	}

	if info.UserID == "" && info.CustomerID != "" {
		user, err := s.db.UserByStripeCustomer(info.CustomerID)
		if err != nil {
			return nil, NewStripeError(CodeCustomerNotFound,
				"subscription has no user metadata and customer "+info.CustomerID+" is unknown", err)
		}
		info.UserID = user.ID
	}
	if info.UserID == "" {
		return nil, NewStripeError(CodeInvalidEvent, "subscription "+subscription.ID+" cannot be tied to a user", nil)
	}

	switch info.BillingCycle = db.BillingCycle(subscription.Metadata["billingCycle"]); info.BillingCycle {
	case db.BillingCycleMonthly, db.BillingCycleYearly:
	default:
		info.BillingCycle = ""
	}
	if len(subscription.Items.Data) > 0 && subscription.Items.Data[0].Price != nil {
		price := subscription.Items.Data[0].Price
		info.Amount = internal.Cents(price.UnitAmount)
		if info.BillingCycle == "" && price.Recurring != nil {
			switch price.Recurring.Interval {
			case stripeapi.PriceRecurringIntervalYear:
				info.BillingCycle = db.BillingCycleYearly
			case stripeapi.PriceRecurringIntervalMonth:
				info.BillingCycle = db.BillingCycleMonthly
			}
		}
	}

	return info, nil
}

// handleSubscriptionChange mirrors a created or updated provider
// subscription into the local row. The write is a single atomic upsert
// keyed on the external subscription id, so concurrent created/updated
// deliveries for the same subscription cannot lose updates. An activation
// supersedes any other active row the user still has.
func (s *Service) handleSubscriptionChange(event *stripeapi.Event) error {
	info, err := s.parseSubscriptionFromEvent(event)
	if err != nil {
		// acknowledge: redelivering an event we cannot tie to a user will
		// never start succeeding
		log.Warnw("ignoring unresolvable subscription event",
			"event", event.ID, "error", err.Error())
		return nil
	}

	unlock := s.lockManager.Lock(info.UserID)
	defer unlock()

	status := db.SubscriptionStatusFromProvider(string(info.Status))
	if err := s.db.UpsertSubscription(&db.Subscription{
		UserID:               info.UserID,
		PackageID:            info.PackageID,
		PackageName:          info.PackageName,
		StripeSubscriptionID: info.ID,
		StripeCustomerID:     info.CustomerID,
		Status:               status,
		CurrentPeriodStart:   info.PeriodStart,
		CurrentPeriodEnd:     info.PeriodEnd,
		AmountPaid:           info.Amount,
		BillingCycle:         info.BillingCycle,
	}); err != nil {
		return err
	}

	if status == db.SubscriptionStatusActive || status == db.SubscriptionStatusTrialing {
		// at most one active subscription per user
		if err := s.db.SupersedeUserSubscriptions(info.UserID, info.ID); err != nil {
			return err
		}
	}

	log.Infow("subscription synced",
		"subscription", info.ID, "user", info.UserID, "status", string(status))
	return nil
}

// handleSubscriptionDeleted marks the user's active subscription canceled.
// No active row is a no-op, not an error.
func (s *Service) handleSubscriptionDeleted(event *stripeapi.Event) error {
	info, err := s.parseSubscriptionFromEvent(event)
	if err != nil {
		log.Warnw("ignoring unresolvable subscription deletion",
			"event", event.ID, "error", err.Error())
		return nil
	}

	unlock := s.lockManager.Lock(info.UserID)
	defer unlock()

	if err := s.db.CancelActiveSubscription(info.UserID); err != nil {
		return err
	}
	log.Infow("subscription canceled", "subscription", info.ID, "user", info.UserID)
	return nil
}

package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/keepsakeprints/backend/internal"
)

type OrderStatus string

type SubscriptionStatus string

type BillingCycle string

// ShippingAddress is the recipient address captured by the payment provider
// at checkout and forwarded verbatim to the fulfillment provider.
type ShippingAddress struct {
	Name       string `json:"name" bson:"name"`
	Line1      string `json:"line1" bson:"line1"`
	Line2      string `json:"line2,omitempty" bson:"line2,omitempty"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

// Order represents one purchase of a physical print. There is exactly one
// order per checkout session id, enforced by a unique index, regardless of
// how many times the corresponding webhook event is delivered.
type Order struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CheckoutSessionID string             `json:"checkoutSessionID" bson:"checkoutSessionID"`
	UserID            string             `json:"userID" bson:"userID"`
	MemoryID          string             `json:"memoryID" bson:"memoryID"`
	ProductID         string             `json:"productID" bson:"productID"`
	Status            OrderStatus        `json:"status" bson:"status"`

	CustomerEmail   string          `json:"customerEmail" bson:"customerEmail"`
	CustomerName    string          `json:"customerName" bson:"customerName"`
	AmountPaid      internal.Cents  `json:"amountPaid" bson:"amountPaid"`
	Currency        string          `json:"currency" bson:"currency"`
	PaymentIntentID string          `json:"paymentIntentID,omitempty" bson:"paymentIntentID,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`

	// Fulfillment saga checkpoint: everything needed to (re)place the
	// fulfillment order without going back to the payment provider.
	FulfillmentOrderID   string `json:"fulfillmentOrderID,omitempty" bson:"fulfillmentOrderID,omitempty"`
	FulfillmentVariantID string `json:"fulfillmentVariantID,omitempty" bson:"fulfillmentVariantID,omitempty"`
	FulfillmentAttempts  int    `json:"fulfillmentAttempts" bson:"fulfillmentAttempts"`

	// Denormalized display fields so order listings need no joins.
	MemoryTitle    string `json:"memoryTitle,omitempty" bson:"memoryTitle,omitempty"`
	MemoryImageURL string `json:"memoryImageURL,omitempty" bson:"memoryImageURL,omitempty"`
	ProductName    string `json:"productName,omitempty" bson:"productName,omitempty"`

	// ReviewReason is set when the order is parked in needs_review.
	ReviewReason string `json:"reviewReason,omitempty" bson:"reviewReason,omitempty"`
	CancelReason string `json:"cancelReason,omitempty" bson:"cancelReason,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Subscription mirrors a provider-side recurring billing relationship.
type Subscription struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID               string             `json:"userID" bson:"userID"`
	PackageID            string             `json:"packageID" bson:"packageID"`
	PackageName          string             `json:"packageName" bson:"packageName"`
	StripeSubscriptionID string             `json:"stripeSubscriptionID" bson:"stripeSubscriptionID"`
	StripeCustomerID     string             `json:"stripeCustomerID" bson:"stripeCustomerID"`
	Status               SubscriptionStatus `json:"status" bson:"status"`
	CurrentPeriodStart   time.Time          `json:"currentPeriodStart" bson:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time          `json:"currentPeriodEnd" bson:"currentPeriodEnd"`
	AmountPaid           internal.Cents     `json:"amountPaid" bson:"amountPaid"`
	BillingCycle         BillingCycle       `json:"billingCycle" bson:"billingCycle"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Product is a printable catalog item. Written by the (out of scope) admin
// CRUD; the payment pipeline only reads it.
type Product struct {
	ID                   string         `json:"id" bson:"_id"`
	Name                 string         `json:"name" bson:"name"`
	Description          string         `json:"description" bson:"description"`
	ImageURL             string         `json:"imageURL" bson:"imageURL"`
	Price                internal.Cents `json:"price" bson:"price"`
	Currency             string         `json:"currency" bson:"currency"`
	FulfillmentVariantID string         `json:"fulfillmentVariantID" bson:"fulfillmentVariantID"`
	Active               bool           `json:"active" bson:"active"`
}

// Memory is the user-uploaded keepsake (photo plus title) a print is made
// from. Written by the (out of scope) upload flow; read-only here.
type Memory struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userID" bson:"userID"`
	Title     string    `json:"title" bson:"title"`
	ImageURL  string    `json:"imageURL" bson:"imageURL"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// User is the storefront account. Authentication is out of scope; the
// pipeline resolves users by auth id or provider customer id only.
type User struct {
	ID               string `json:"id" bson:"_id"`
	AuthID           string `json:"authID" bson:"authID"`
	Email            string `json:"email" bson:"email"`
	Name             string `json:"name" bson:"name"`
	StripeCustomerID string `json:"stripeCustomerID,omitempty" bson:"stripeCustomerID,omitempty"`
	Admin            bool   `json:"admin" bson:"admin"`
}

// Package is a recurring-billing tier with per-cycle prices. A zero price
// for a cycle means the free plan, which never touches the payment provider.
type Package struct {
	ID                   string         `json:"id" bson:"_id"`
	Name                 string         `json:"name" bson:"name"`
	MonthlyPrice         internal.Cents `json:"monthlyPrice" bson:"monthlyPrice"`
	YearlyPrice          internal.Cents `json:"yearlyPrice" bson:"yearlyPrice"`
	StripeMonthlyPriceID string         `json:"stripeMonthlyPriceID,omitempty" bson:"stripeMonthlyPriceID,omitempty"`
	StripeYearlyPriceID  string         `json:"stripeYearlyPriceID,omitempty" bson:"stripeYearlyPriceID,omitempty"`
}

// Price returns the package price for the given billing cycle.
func (p *Package) Price(cycle BillingCycle) internal.Cents {
	if cycle == BillingCycleYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// StripePriceID returns the provider price object id for the given cycle,
// empty when none has been provisioned yet.
func (p *Package) StripePriceID(cycle BillingCycle) string {
	if cycle == BillingCycleYearly {
		return p.StripeYearlyPriceID
	}
	return p.StripeMonthlyPriceID
}

// AuditEntry records an admin compensating action (cancel, refund, delete).
type AuditEntry struct {
	ID        string    `json:"id" bson:"_id"`
	AdminID   string    `json:"adminID" bson:"adminID"`
	Action    string    `json:"action" bson:"action"`
	OrderID   string    `json:"orderID" bson:"orderID"`
	Reason    string    `json:"reason" bson:"reason"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

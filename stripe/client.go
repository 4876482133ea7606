package stripe

import (
	"fmt"

	//revive:disable:import-alias-naming
	stripeapi "github.com/stripe/stripe-go/v81"
	stripeCheckoutSession "github.com/stripe/stripe-go/v81/checkout/session"
	stripeCustomer "github.com/stripe/stripe-go/v81/customer"
	stripeRefund "github.com/stripe/stripe-go/v81/refund"
	stripeWebhook "github.com/stripe/stripe-go/v81/webhook"

	"github.com/keepsakeprints/backend/internal"
)

// shippingCountries lists the countries the fulfillment provider ships to.
var shippingCountries = []string{"US", "CA", "GB", "AU", "DE", "FR", "ES", "IT", "NL"}

// Client wraps the Stripe API client with additional functionality
type Client struct {
	config *Config
}

// NewClient creates a new Stripe client with the given configuration
func NewClient(config *Config) *Client {
	stripeapi.Key = config.APIKey

	return &Client{
		config: config,
	}
}

// ValidateWebhookEvent validates and parses a webhook event
func (c *Client) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := stripeWebhook.ConstructEvent(payload, signatureHeader, c.config.WebhookSecret)
	if err != nil {
		return nil, NewStripeError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}

// PaymentCheckoutParams holds parameters for a one-time purchase session.
type PaymentCheckoutParams struct {
	UserID               string
	MemoryID             string
	ProductID            string
	ProductName          string
	ProductDescription   string
	ImageURL             string
	FulfillmentVariantID string
	Amount               internal.Cents
	Currency             string
	CustomerEmail        string
}

// CreatePaymentCheckoutSession creates a hosted checkout session in payment
// mode for a single print. The metadata bag is the only channel of truth the
// webhook handler has later, so every reference the fulfillment flow needs
// travels on it.
// Overview of stripe checkout mechanics: https://docs.stripe.com/checkout/custom/quickstart
// API description https://docs.stripe.com/api/checkout/sessions
func (c *Client) CreatePaymentCheckoutSession(params *PaymentCheckoutParams) (*stripeapi.CheckoutSession, error) {
	productData := &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripeapi.String(params.ProductName),
	}
	if params.ProductDescription != "" {
		productData.Description = stripeapi.String(params.ProductDescription)
	}
	if params.ImageURL != "" {
		productData.Images = stripeapi.StringSlice([]string{params.ImageURL})
	}

	checkoutParams := &stripeapi.CheckoutSessionParams{
		Mode:          stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		CustomerEmail: stripeapi.String(params.CustomerEmail),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripeapi.String(params.Currency),
					UnitAmount:  stripeapi.Int64(int64(params.Amount)),
					ProductData: productData,
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		ShippingAddressCollection: &stripeapi.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripeapi.StringSlice(shippingCountries),
		},
		SuccessURL: stripeapi.String(c.config.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripeapi.String(c.config.CancelURL),
	}
	checkoutParams.AddMetadata("userID", params.UserID)
	checkoutParams.AddMetadata("memoryID", params.MemoryID)
	checkoutParams.AddMetadata("productID", params.ProductID)
	checkoutParams.AddMetadata("imageURL", params.ImageURL)
	checkoutParams.AddMetadata("fulfillmentVariantID", params.FulfillmentVariantID)

	session, err := stripeCheckoutSession.New(checkoutParams)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create checkout session", err)
	}
	return session, nil
}

// SubscriptionCheckoutParams holds parameters for a recurring-plan session.
type SubscriptionCheckoutParams struct {
	UserID        string
	PackageID     string
	PackageName   string
	BillingCycle  string
	PriceID       string
	CustomerEmail string
}

// CreateSubscriptionCheckoutSession creates a hosted checkout session in
// subscription mode. The same metadata travels on the session and on the
// subscription object, so both checkout and subscription lifecycle events
// can resolve the local user and package.
func (c *Client) CreateSubscriptionCheckoutSession(params *SubscriptionCheckoutParams) (*stripeapi.CheckoutSession, error) {
	metadata := map[string]string{
		"userID":       params.UserID,
		"packageID":    params.PackageID,
		"packageName":  params.PackageName,
		"billingCycle": params.BillingCycle,
	}

	checkoutParams := &stripeapi.CheckoutSessionParams{
		Mode:          stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		CustomerEmail: stripeapi.String(params.CustomerEmail),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Price:    stripeapi.String(params.PriceID),
				Quantity: stripeapi.Int64(1),
			},
		},
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripeapi.String(c.config.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripeapi.String(c.config.CancelURL),
	}
	for key, value := range metadata {
		checkoutParams.AddMetadata(key, value)
	}

	session, err := stripeCheckoutSession.New(checkoutParams)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create subscription checkout session", err)
	}
	return session, nil
}

// RefundPayment refunds the given amount against a payment intent. The reason
// travels as refund metadata so it is visible in the provider dashboard.
func (*Client) RefundPayment(paymentIntentID string, amount internal.Cents, reason string) (*stripeapi.Refund, error) {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(paymentIntentID),
		Amount:        stripeapi.Int64(int64(amount)),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	refund, err := stripeRefund.New(params)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create refund", err)
	}
	return refund, nil
}

// GetCustomer retrieves a customer by ID
func (*Client) GetCustomer(customerID string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{}
	customer, err := stripeCustomer.Get(customerID, params)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to get customer", err)
	}
	return customer, nil
}

// GetCustomerByEmail retrieves a customer by email address
func (*Client) GetCustomerByEmail(email string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerListParams{
		Email: stripeapi.String(email),
	}

	customers := stripeCustomer.List(params)
	if !customers.Next() {
		return nil, NewStripeError(CodeCustomerNotFound, fmt.Sprintf("customer with email %s not found", email), nil)
	}

	return customers.Customer(), nil
}

// GetCheckoutSession retrieves a checkout session by ID
func (*Client) GetCheckoutSession(sessionID string) (*CheckoutSessionStatus, error) {
	params := &stripeapi.CheckoutSessionParams{}
	session, err := stripeCheckoutSession.Get(sessionID, params)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to get checkout session", err)
	}

	status := &CheckoutSessionStatus{
		Status:        string(session.Status),
		PaymentStatus: string(session.PaymentStatus),
	}
	if session.CustomerDetails != nil {
		status.CustomerEmail = session.CustomerDetails.Email
	}
	return status, nil
}

// CheckoutSessionStatus represents the status of a checkout session
type CheckoutSessionStatus struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	CustomerEmail string `json:"customer_email"`
}

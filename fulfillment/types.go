// Package fulfillment integrates with the print-on-demand provider that
// produces and ships physical keepsake prints after payment is captured.
package fulfillment

import (
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/internal"
)

// externalIDMaxLen is the provider's length limit for the external
// correlation id field.
const externalIDMaxLen = 32

// Recipient is the shipping destination, mapped field-by-field from the
// payment provider's shipping address object.
type Recipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
	Email       string `json:"email,omitempty"`
}

// File references the print source image by URL.
type File struct {
	URL string `json:"url"`
}

// LineItem is one product to print.
type LineItem struct {
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	RetailPrice string `json:"retail_price"`
	Name        string `json:"name,omitempty"`
	Files       []File `json:"files"`
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	ExternalID string     `json:"external_id"`
	Recipient  Recipient  `json:"recipient"`
	Items      []LineItem `json:"items"`
}

// OrderResponse is the provider's create-order result.
type OrderResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// ExternalID derives the provider correlation id from the checkout session
// id, truncated to the provider's limit, so a retried call is recognizable
// as a duplicate of the same purchase.
func ExternalID(checkoutSessionID string) string {
	if len(checkoutSessionID) > externalIDMaxLen {
		return checkoutSessionID[:externalIDMaxLen]
	}
	return checkoutSessionID
}

// RequestFromOrder builds the provider payload from a fully checkpointed
// order row. Both the webhook flow and the retry worker construct the exact
// same request, so a duplicate submission carries a duplicate external id.
func RequestFromOrder(order *db.Order) *OrderRequest {
	return &OrderRequest{
		ExternalID: ExternalID(order.CheckoutSessionID),
		Recipient: Recipient{
			Name:        order.ShippingAddress.Name,
			Address1:    order.ShippingAddress.Line1,
			Address2:    order.ShippingAddress.Line2,
			City:        order.ShippingAddress.City,
			StateCode:   order.ShippingAddress.State,
			Zip:         order.ShippingAddress.PostalCode,
			CountryCode: order.ShippingAddress.Country,
			Email:       order.CustomerEmail,
		},
		Items: []LineItem{{
			VariantID:   order.FulfillmentVariantID,
			Quantity:    1,
			RetailPrice: internal.FormatExternalDecimal(order.AmountPaid),
			Name:        order.ProductName,
			Files:       []File{{URL: order.MemoryImageURL}},
		}},
	}
}

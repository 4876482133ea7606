package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/api/apicommon"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/errors"
)

// createCheckoutHandler creates a payment provider checkout session for
// printing one of the user's memories and returns the hosted checkout URL.
func (a *API) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.CheckoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if req.ProductID == "" || req.MemoryID == "" {
		errors.ErrMalformedBody.Withf("productID and memoryID are required").Write(w)
		return
	}

	intent, err := a.stripe.CreateCheckout(user, req.ProductID, req.MemoryID)
	if err != nil {
		if apiErr, ok := err.(errors.Error); ok {
			apiErr.Write(w)
			return
		}
		log.Errorf("failed to create checkout session: %v", err)
		errors.ErrStripeError.Withf("cannot create session: %v", err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, intent)
}

// checkoutSessionHandler returns the provider-side status of a checkout
// session, used by the frontend success page to decide what to show.
func (a *API) checkoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		errors.ErrMalformedURLParam.Withf("sessionID is required").Write(w)
		return
	}
	status, err := a.stripe.GetCheckoutSession(sessionID)
	if err != nil {
		log.Errorf("failed to get checkout session: %v", err)
		errors.ErrStripeError.Withf("cannot get session: %v", err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, status)
}

// createSubscriptionCheckoutHandler creates a subscription checkout session
// for the chosen package and billing cycle.
func (a *API) createSubscriptionCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	req := &apicommon.SubscriptionCheckoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if req.PackageID == "" {
		errors.ErrMalformedBody.Withf("packageID is required").Write(w)
		return
	}

	intent, err := a.stripe.CreateSubscriptionCheckout(user, req.PackageID, db.BillingCycle(req.BillingCycle))
	if err != nil {
		if apiErr, ok := err.(errors.Error); ok {
			apiErr.Write(w)
			return
		}
		log.Errorf("failed to create subscription checkout session: %v", err)
		errors.ErrStripeError.Withf("cannot create session: %v", err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, intent)
}

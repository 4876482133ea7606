package api

import (
	"net/http"

	"github.com/keepsakeprints/backend/api/apicommon"
	"github.com/keepsakeprints/backend/errors"
)

// myOrdersHandler lists the authenticated user's orders, newest first.
func (a *API) myOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	orders, err := a.db.OrdersByUser(user.ID)
	if err != nil {
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.OrdersResponse{Orders: orders})
}

// mySubscriptionsHandler lists the authenticated user's subscriptions.
func (a *API) mySubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	subs, err := a.db.SubscriptionsByUser(user.ID)
	if err != nil {
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.SubscriptionsResponse{Subscriptions: subs})
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/keepsakeprints/backend/api/apicommon"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/errors"
	"github.com/keepsakeprints/backend/internal"
)

// defaultAdminOrdersLimit caps unpaginated admin listings.
const defaultAdminOrdersLimit = 200

// adminOrdersHandler lists orders for review, optionally filtered by the
// status query parameter. An unknown status yields an empty list, not an
// error, so dashboards can probe freely.
func (a *API) adminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultAdminOrdersLimit)
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.ParseInt(rawLimit, 10, 64)
		if err != nil || parsed <= 0 {
			errors.ErrMalformedURLParam.Withf("invalid limit %q", rawLimit).Write(w)
			return
		}
		limit = parsed
	}

	var (
		orders []*db.Order
		err    error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		orders, err = a.db.OrdersByStatus(db.OrderStatus(status), limit)
	} else {
		orders, err = a.db.Orders(limit)
	}
	if err != nil {
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.OrdersResponse{Orders: orders})
}

// adminOrderAuditHandler returns the audit trail of an order, newest first.
func (a *API) adminOrderAuditHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := apicommon.OrderIDFromRequest(r)
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	entries, err := a.db.AuditEntriesByOrder(orderID.Hex())
	if err != nil {
		errors.ErrInternalStorageError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.AuditEntriesResponse{Entries: entries})
}

// adminCancelOrderHandler soft-cancels an order. Business refusals (unknown
// order, state machine guard) come back as an unsuccessful result with HTTP
// 200; only infrastructure failures are HTTP errors.
func (a *API) adminCancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	orderID, err := apicommon.OrderIDFromRequest(r)
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.CancelOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}

	result, err := a.stripe.CancelOrder(r.Context(), admin, orderID, req.Reason)
	if err != nil {
		if apiErr, ok := err.(errors.Error); ok {
			apiErr.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, result)
}

// adminRefundOrderHandler refunds an order's payment through the provider
// and marks the order refunded.
func (a *API) adminRefundOrderHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	orderID, err := apicommon.OrderIDFromRequest(r)
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	req := &apicommon.RefundOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}
	if req.Amount <= 0 {
		errors.ErrInvalidPrice.Withf("refund amount must be positive").Write(w)
		return
	}

	result, err := a.stripe.RefundOrder(
		r.Context(), admin, orderID, req.PaymentIntentID, internal.Cents(req.Amount), req.Reason)
	if err != nil {
		if apiErr, ok := err.(errors.Error); ok {
			apiErr.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, result)
}

// adminDeleteOrderHandler hard-deletes an order row. The action is audited
// before the row disappears.
func (a *API) adminDeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := apicommon.UserFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	orderID, err := apicommon.OrderIDFromRequest(r)
	if err != nil {
		errors.ErrMalformedURLParam.WithErr(err).Write(w)
		return
	}
	reason := r.URL.Query().Get("reason")

	result, err := a.stripe.HardDeleteOrder(r.Context(), admin, orderID, reason)
	if err != nil {
		if apiErr, ok := err.(errors.Error); ok {
			apiErr.Write(w)
			return
		}
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, result)
}

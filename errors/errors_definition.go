package errors

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the caller's fault and map to a
// 4xx HTTP status. Codes 50001-59999 are the server's fault and map to 5xx.
// Never change or reuse an existing code, only append.
var (
	// Authentication errors (401/403)
	ErrUnauthorized = Error{Code: 40001, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("authentication required"), LogLevel: "info"}
	ErrNotAdmin     = Error{Code: 40002, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("admin privilege required"), LogLevel: "info"}

	// Validation errors (400)
	ErrMalformedBody     = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrInvalidPrice      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid price value")}
	ErrInvalidSignature  = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("webhook signature verification failed"), LogLevel: "warn"}
	ErrInvalidBillingCycle = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid billing cycle")}

	// Not found errors (404)
	ErrOrderNotFound   = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("order not found")}
	ErrProductNotFound = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("product not found")}
	ErrMemoryNotFound  = Error{Code: 40009, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("memory not found")}
	ErrUserNotFound    = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("user not found")}
	ErrPackageNotFound = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("subscription package not found")}

	// Conflict errors (409)
	ErrDuplicateConflict    = Error{Code: 40901, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("resource already exists")}
	ErrOrderAlreadySettled  = Error{Code: 40902, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("order is already settled")}
	ErrInvalidOrderStatus   = Error{Code: 40903, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("order status does not allow this operation")}

	// Server errors (500)
	ErrGenericInternalServerError = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: operation failed"), LogLevel: "error"}
	ErrInternalStorageError       = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: storage operation failed"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: payment processing failed"), LogLevel: "error"}
	ErrStripeWebhookError         = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: stripe webhook failed"), LogLevel: "error"}
	ErrFulfillmentError           = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: fulfillment request failed"), LogLevel: "error"}
)

package api

import (
	"io"
	"net/http"

	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/stripe"
)

// maxWebhookBodyBytes caps the webhook payload size.
const maxWebhookBodyBytes = int64(65536)

// stripeWebhookHandler receives payment provider events. A 2xx acknowledges
// the event; any other status makes the provider redeliver it later, so only
// genuinely retryable failures return 5xx. Signature failures are the
// caller's fault and return 400 without retry.
func (a *API) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if a.stripe == nil {
		log.Errorf("stripe webhook: payment service not available")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Errorf("stripe webhook: error reading request body: %s", err.Error())
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		log.Errorf("stripe webhook: missing Stripe-Signature header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := a.stripe.HandleWebhookEvent(payload, signatureHeader); err != nil {
		log.Errorf("stripe webhook: failed to process event: %v", err)
		if stripe.IsSignatureError(err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

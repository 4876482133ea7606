package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/notifications"
	"go.vocdoni.io/dvote/log"
)

const (
	// defaultPollInterval is how often the worker scans for parked orders.
	defaultPollInterval = time.Minute
	// defaultBatchSize is the maximum number of parked orders picked up
	// per pass, oldest first.
	defaultBatchSize = 20
	// defaultMaxAttempts is the total submission budget per order before
	// it is marked permanently failed.
	defaultMaxAttempts = 5
)

// Worker retries provider submissions for orders that were paid but could
// not be fulfilled synchronously. The webhook flow parks those orders and
// acknowledges the payment event, so provider downtime never causes the
// payment provider to re-deliver events.
type Worker struct {
	db     *db.MongoStorage
	client *Client
	mailer notifications.NotificationService

	pollInterval   time.Duration
	batchSize      int64
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker creates a retry worker with default pacing. The mailer may be
// nil, in which case no confirmation mail is sent on recovery.
func NewWorker(database *db.MongoStorage, client *Client, mailer notifications.NotificationService) *Worker {
	return &Worker{
		db:             database,
		client:         client,
		mailer:         mailer,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: time.Second,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log.Infow("starting fulfillment retry worker", "interval", w.pollInterval.String())
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infow("fulfillment retry worker stopped")
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending runs a single scan-and-retry pass over parked orders.
func (w *Worker) processPending(ctx context.Context) {
	orders, err := w.db.OrdersByStatus(db.OrderStatusFulfillmentPending, w.batchSize)
	if err != nil {
		log.Errorf("could not list pending fulfillments: %v", err)
		return
	}
	for _, order := range orders {
		if ctx.Err() != nil {
			return
		}
		w.retryOrder(ctx, order)
	}
}

// retryOrder re-submits one parked order, with exponential backoff inside
// the pass for transient failures. A permanent rejection or an exhausted
// attempt budget moves the order to the failed state for manual review.
func (w *Worker) retryOrder(ctx context.Context, order *db.Order) {
	if order.FulfillmentAttempts >= w.maxAttempts {
		w.failOrder(order, fmt.Sprintf("gave up after %d attempts", order.FulfillmentAttempts))
		return
	}
	if err := w.db.IncOrderFulfillmentAttempts(order.ID); err != nil {
		log.Warnw("could not record fulfillment attempt",
			"session", order.CheckoutSessionID, "error", err.Error())
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(w.retryBaseDelay)), 2), ctx)
	var resp *OrderResponse
	err := backoff.Retry(func() error {
		var callErr error
		resp, callErr = w.client.CreateOrder(ctx, RequestFromOrder(order))
		if callErr != nil && !IsTransient(callErr) {
			return backoff.Permanent(callErr)
		}
		return callErr
	}, policy)
	if err != nil {
		if !IsTransient(err) {
			w.failOrder(order, err.Error())
			return
		}
		// still transient, leave parked for the next pass
		log.Warnw("fulfillment retry still failing",
			"session", order.CheckoutSessionID,
			"attempts", order.FulfillmentAttempts+1,
			"error", err.Error())
		return
	}

	fulfillmentOrderID := fmt.Sprintf("%d", resp.ID)
	if err := w.db.MarkOrderPaid(order.CheckoutSessionID, fulfillmentOrderID, order.AmountPaid); err != nil {
		log.Errorf("fulfillment submitted but order %s could not be marked paid: %v",
			order.CheckoutSessionID, err)
		return
	}
	log.Infow("recovered parked fulfillment",
		"session", order.CheckoutSessionID,
		"fulfillmentOrder", fulfillmentOrderID)
	w.sendConfirmation(ctx, order)
}

// failOrder moves a parked order to the permanent-failure state.
func (w *Worker) failOrder(order *db.Order, reason string) {
	log.Warnw("fulfillment permanently failed",
		"session", order.CheckoutSessionID, "reason", reason)
	if err := w.db.SetOrderStatusBySession(order.CheckoutSessionID,
		db.OrderStatusFulfillmentFailed, reason); err != nil {
		log.Errorf("could not mark order %s as failed: %v", order.CheckoutSessionID, err)
	}
}

// sendConfirmation delivers the order confirmation mail, best effort.
func (w *Worker) sendConfirmation(ctx context.Context, order *db.Order) {
	if w.mailer == nil || order.CustomerEmail == "" {
		return
	}
	if err := w.mailer.SendNotification(ctx, notifications.OrderConfirmation(order)); err != nil {
		log.Warnw("could not send order confirmation",
			"to", order.CustomerEmail, "error", err.Error())
	}
}

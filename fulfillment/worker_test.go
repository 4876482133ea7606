package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/notifications/testmail"
	"github.com/keepsakeprints/backend/test"
)

var testDB *db.MongoStorage

func TestMain(m *testing.M) {
	ctx := context.Background()
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}
	mongoURI, err := dbContainer.ConnectionString(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB connection string: %v", err))
	}
	testDB, err = db.New(mongoURI, test.RandomDatabaseName())
	if err != nil {
		panic(fmt.Sprintf("failed to create new MongoDB connection: %v", err))
	}

	code := m.Run()

	testDB.Close()
	if err := dbContainer.Terminate(ctx); err != nil {
		panic(fmt.Sprintf("failed to stop MongoDB container: %v", err))
	}
	os.Exit(code)
}

// parkOrder creates a paid-but-unfulfilled order waiting for the worker.
func parkOrder(c *qt.C) *db.Order {
	order := testPendingOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)
	c.Assert(testDB.SetOrderStatusBySession(order.CheckoutSessionID,
		db.OrderStatusFulfillmentPending, "provider unavailable"), qt.IsNil)
	parked, err := testDB.OrderByCheckoutSession(order.CheckoutSessionID)
	c.Assert(err, qt.IsNil)
	return parked
}

func testWorker(client *Client, mailer *testmail.TestMail) *Worker {
	w := NewWorker(testDB, client, mailer)
	w.retryBaseDelay = time.Millisecond
	return w
}

func TestWorkerRecoversParkedOrder(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	parked := parkOrder(c)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"id": 777, "status": "draft"},
		})
	}))
	defer srv.Close()

	mailer := &testmail.TestMail{}
	worker := testWorker(New(Config{BaseURL: srv.URL, APIKey: "pk_test"}), mailer)
	worker.processPending(context.Background())

	recovered, err := testDB.OrderByCheckoutSession(parked.CheckoutSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(recovered.Status, qt.Equals, db.OrderStatusPaid)
	c.Assert(recovered.FulfillmentOrderID, qt.Equals, "777")
	c.Assert(recovered.FulfillmentAttempts, qt.Equals, 1)

	mail, found := mailer.FindEmail(parked.CustomerEmail)
	c.Assert(found, qt.IsTrue)
	c.Assert(mail.Subject, qt.Contains, "confirmed")
}

func TestWorkerPermanentRejection(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	parked := parkOrder(c)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "variant discontinued"})
	}))
	defer srv.Close()

	worker := testWorker(New(Config{BaseURL: srv.URL, APIKey: "pk_test"}), nil)
	worker.processPending(context.Background())

	failed, err := testDB.OrderByCheckoutSession(parked.CheckoutSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(failed.Status, qt.Equals, db.OrderStatusFulfillmentFailed)
	c.Assert(failed.ReviewReason, qt.Contains, "variant discontinued")
}

func TestWorkerLeavesTransientFailureParked(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	parked := parkOrder(c)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	worker := testWorker(New(Config{BaseURL: srv.URL, APIKey: "pk_test"}), nil)
	worker.processPending(context.Background())

	still, err := testDB.OrderByCheckoutSession(parked.CheckoutSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(still.Status, qt.Equals, db.OrderStatusFulfillmentPending)
	c.Assert(still.FulfillmentAttempts, qt.Equals, 1)
	// backoff retries inside the pass before giving up until the next one
	c.Assert(calls > 1, qt.IsTrue)
}

func TestWorkerExhaustsAttemptBudget(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	parked := parkOrder(c)
	for i := 0; i < defaultMaxAttempts; i++ {
		c.Assert(testDB.IncOrderFulfillmentAttempts(parked.ID), qt.IsNil)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	worker := testWorker(New(Config{BaseURL: srv.URL, APIKey: "pk_test"}), nil)
	worker.processPending(context.Background())

	failed, err := testDB.OrderByCheckoutSession(parked.CheckoutSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(failed.Status, qt.Equals, db.OrderStatusFulfillmentFailed)
	c.Assert(failed.ReviewReason, qt.Contains, "gave up")
}

package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripeWebhook "github.com/stripe/stripe-go/v81/webhook"

	"github.com/keepsakeprints/backend/api/apicommon"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/fulfillment"
	"github.com/keepsakeprints/backend/stripe"
	"github.com/keepsakeprints/backend/test"
)

const (
	testAPISecret     = "super-secret"
	testWebhookSecret = "whsec_test_secret"
	testBuyerID       = "user_buyer"
	testAdminID       = "user_admin"
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

// newTestServer builds the full API on top of the test database and returns
// the HTTP test server plus the API instance for token minting.
func newTestServer(c *qt.C) (*httptest.Server, *API) {
	stripeConf := &stripe.Config{
		APIKey:        "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://shop.example.com/thanks",
		CancelURL:     "https://shop.example.com/cart",
	}
	fulfiller := fulfillment.New(fulfillment.Config{
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "pk_test",
		Timeout: time.Second,
	})
	svc, err := stripe.NewService(stripeConf, testDB, fulfiller, nil)
	c.Assert(err, qt.IsNil)

	a := New(&Config{
		Host:   "127.0.0.1",
		Port:   0,
		Secret: testAPISecret,
		DB:     testDB,
		Stripe: svc,
	})
	srv := httptest.NewServer(a.initRouter())
	c.Cleanup(srv.Close)
	return srv, a
}

func seedUsers(c *qt.C) {
	c.Assert(testDB.SetUser(&db.User{
		ID:     testBuyerID,
		AuthID: "auth_buyer",
		Email:  "buyer@example.com",
		Name:   "Test Buyer",
	}), qt.IsNil)
	c.Assert(testDB.SetUser(&db.User{
		ID:     testAdminID,
		AuthID: "auth_admin",
		Email:  "admin@example.com",
		Name:   "Test Admin",
		Admin:  true,
	}), qt.IsNil)
}

// request performs an HTTP request against the test server with an optional
// bearer token and JSON body, returning the status code and raw body.
func request(c *qt.C, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	c.Assert(err, qt.IsNil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	c.Assert(err, qt.IsNil)
	defer func() {
		c.Assert(resp.Body.Close(), qt.IsNil)
	}()
	raw, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, raw
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, _ := newTestServer(c)

	status, body := request(c, srv, http.MethodGet, pingEndpoint, "", nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(string(body), qt.Equals, ".")
}

func TestAuthenticationRequired(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	// no token
	status, _ := request(c, srv, http.MethodGet, ordersEndpoint, "", nil)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	// garbage token
	status, _ = request(c, srv, http.MethodGet, ordersEndpoint, "not-a-jwt", nil)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	// valid token for a user that does not exist
	ghost, err := a.makeToken("user_ghost")
	c.Assert(err, qt.IsNil)
	status, _ = request(c, srv, http.MethodGet, ordersEndpoint, ghost, nil)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	// valid token for a real user
	buyer, err := a.makeToken(testBuyerID)
	c.Assert(err, qt.IsNil)
	status, _ = request(c, srv, http.MethodGet, ordersEndpoint, buyer, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestMyOrdersListing(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	c.Assert(testDB.CreateOrder(&db.Order{
		CheckoutSessionID: "cs_test_mine",
		UserID:            testBuyerID,
		ProductID:         "prod_1",
	}), qt.IsNil)
	c.Assert(testDB.CreateOrder(&db.Order{
		CheckoutSessionID: "cs_test_other",
		UserID:            "user_somebody_else",
		ProductID:         "prod_1",
	}), qt.IsNil)

	buyer, err := a.makeToken(testBuyerID)
	c.Assert(err, qt.IsNil)
	status, body := request(c, srv, http.MethodGet, ordersEndpoint, buyer, nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	var listing apicommon.OrdersResponse
	c.Assert(json.Unmarshal(body, &listing), qt.IsNil)
	c.Assert(listing.Orders, qt.HasLen, 1)
	c.Assert(listing.Orders[0].CheckoutSessionID, qt.Equals, "cs_test_mine")
}

func TestAdminGuard(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	buyer, err := a.makeToken(testBuyerID)
	c.Assert(err, qt.IsNil)
	admin, err := a.makeToken(testAdminID)
	c.Assert(err, qt.IsNil)

	status, _ := request(c, srv, http.MethodGet, "/admin/orders", buyer, nil)
	c.Assert(status, qt.Equals, http.StatusForbidden)

	status, _ = request(c, srv, http.MethodGet, "/admin/orders", admin, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestAdminCancelOrder(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	order := &db.Order{
		CheckoutSessionID: "cs_test_cancel_me",
		UserID:            testBuyerID,
		ProductID:         "prod_1",
	}
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	admin, err := a.makeToken(testAdminID)
	c.Assert(err, qt.IsNil)
	path := fmt.Sprintf("/admin/orders/%s/cancel", order.ID.Hex())
	status, body := request(c, srv, http.MethodPost, path, admin,
		&apicommon.CancelOrderRequest{Reason: "customer request"})
	c.Assert(status, qt.Equals, http.StatusOK)

	var result stripe.CompensationResult
	c.Assert(json.Unmarshal(body, &result), qt.IsNil)
	c.Assert(result.Success, qt.IsTrue)

	stored, err := testDB.Order(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, db.OrderStatusCancelled)

	// the cancellation shows up in the audit trail
	auditPath := fmt.Sprintf("/admin/orders/%s/audit", order.ID.Hex())
	status, body = request(c, srv, http.MethodGet, auditPath, admin, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	var trail apicommon.AuditEntriesResponse
	c.Assert(json.Unmarshal(body, &trail), qt.IsNil)
	c.Assert(trail.Entries, qt.HasLen, 1)
	c.Assert(trail.Entries[0].Action, qt.Equals, "order.cancel")
	c.Assert(trail.Entries[0].AdminID, qt.Equals, testAdminID)
}

func TestAdminOrdersStatusFilter(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	c.Assert(testDB.CreateOrder(&db.Order{
		CheckoutSessionID: "cs_test_pending",
		UserID:            testBuyerID,
	}), qt.IsNil)
	c.Assert(testDB.CreateOrder(&db.Order{
		CheckoutSessionID: "cs_test_review",
		UserID:            testBuyerID,
		Status:            db.OrderStatusNeedsReview,
	}), qt.IsNil)

	admin, err := a.makeToken(testAdminID)
	c.Assert(err, qt.IsNil)

	status, body := request(c, srv, http.MethodGet, "/admin/orders?status=needs_review", admin, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	var listing apicommon.OrdersResponse
	c.Assert(json.Unmarshal(body, &listing), qt.IsNil)
	c.Assert(listing.Orders, qt.HasLen, 1)
	c.Assert(listing.Orders[0].CheckoutSessionID, qt.Equals, "cs_test_review")

	status, body = request(c, srv, http.MethodGet, "/admin/orders", admin, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	listing = apicommon.OrdersResponse{}
	c.Assert(json.Unmarshal(body, &listing), qt.IsNil)
	c.Assert(listing.Orders, qt.HasLen, 2)

	status, _ = request(c, srv, http.MethodGet, "/admin/orders?limit=bogus", admin, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestCheckoutValidation(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	buyer, err := a.makeToken(testBuyerID)
	c.Assert(err, qt.IsNil)

	// missing fields
	status, _ := request(c, srv, http.MethodPost, checkoutEndpoint, buyer,
		&apicommon.CheckoutRequest{ProductID: "prod_1"})
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	// unknown product
	status, _ = request(c, srv, http.MethodPost, checkoutEndpoint, buyer,
		&apicommon.CheckoutRequest{ProductID: "prod_missing", MemoryID: "mem_1"})
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestSubscriptionCheckoutFreePlan(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, a := newTestServer(c)
	seedUsers(c)

	c.Assert(testDB.SetPackage(&db.Package{
		ID:   "pkg_free",
		Name: "Free",
	}), qt.IsNil)

	buyer, err := a.makeToken(testBuyerID)
	c.Assert(err, qt.IsNil)
	status, body := request(c, srv, http.MethodPost, subscriptionCheckoutEndpoint, buyer,
		&apicommon.SubscriptionCheckoutRequest{PackageID: "pkg_free", BillingCycle: "monthly"})
	c.Assert(status, qt.Equals, http.StatusOK)

	var intent stripe.CheckoutIntent
	c.Assert(json.Unmarshal(body, &intent), qt.IsNil)
	c.Assert(intent.URL, qt.Contains, "plan=free")

	// an unknown billing cycle is rejected before any lookup
	status, _ = request(c, srv, http.MethodPost, subscriptionCheckoutEndpoint, buyer,
		&apicommon.SubscriptionCheckoutRequest{PackageID: "pkg_free", BillingCycle: "weekly"})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestWebhookEndpoint(t *testing.T) {
	c := qt.New(t)
	c.Assert(testDB.Reset(), qt.IsNil)
	srv, _ := newTestServer(c)

	// missing signature header
	resp, err := srv.Client().Post(srv.URL+stripeWebhookEndpoint, "application/json",
		bytes.NewReader([]byte(`{}`)))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Body.Close(), qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)

	// bad signature
	status := postWebhook(c, srv, []byte(`{}`), "t=1,v1=deadbeef")
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	// properly signed event of an unhandled type is acknowledged
	payload, header := signedEvent(c, "evt_api_1", "invoice.created")
	status = postWebhook(c, srv, payload, header)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func postWebhook(c *qt.C, srv *httptest.Server, payload []byte, signature string) int {
	req, err := http.NewRequest(http.MethodPost, srv.URL+stripeWebhookEndpoint, bytes.NewReader(payload))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	resp, err := srv.Client().Do(req)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Body.Close(), qt.IsNil)
	return resp.StatusCode
}

// signedEvent builds a minimal event envelope with a valid signature header.
func signedEvent(c *qt.C, eventID, eventType string) ([]byte, string) {
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"api_version": stripeapi.APIVersion,
		"type":        eventType,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": map[string]any{}},
	})
	c.Assert(err, qt.IsNil)
	now := time.Now()
	sig := stripeWebhook.ComputeSignature(now, payload, testWebhookSecret)
	return payload, fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/keepsakeprints/backend/test"
)

var testDB *MongoStorage

// Common test constants
const (
	testUserID        = "user_1"
	testUserEmail     = "buyer@example.com"
	testUserName      = "Test Buyer"
	testProductID     = "prod_canvas_8x10"
	testMemoryID      = "mem_1"
	testSessionID     = "cs_test_123"
	testVariantID     = "9001"
	testCustomerID    = "cus_test_1"
	testStripeSubID   = "sub_test_1"
	testPackageID     = "pkg_premium"
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	// start a MongoDB container for testing
	dbContainer, err := test.StartMongoContainer(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to start MongoDB container: %v", err))
	}

	mongoURI, err := dbContainer.ConnectionString(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to get MongoDB connection string: %v", err))
	}

	testDB, err = New(mongoURI, test.RandomDatabaseName())
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

func resetDB(c *qt.C) {
	c.Assert(testDB.Reset(), qt.IsNil)
}

func testOrder() *Order {
	return &Order{
		CheckoutSessionID: testSessionID,
		UserID:            testUserID,
		MemoryID:          testMemoryID,
		ProductID:         testProductID,
		CustomerEmail:     testUserEmail,
		CustomerName:      testUserName,
		Currency:          "usd",
		ShippingAddress: ShippingAddress{
			Name:       testUserName,
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
	}
}

package db

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateOrder(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)
	c.Assert(order.Status, qt.Equals, OrderStatusPending)
	c.Assert(order.ID.IsZero(), qt.IsFalse)

	// a second insert for the same checkout session must fail
	dup := testOrder()
	c.Assert(testDB.CreateOrder(dup), qt.Equals, ErrAlreadyExists)

	// missing session id is rejected
	c.Assert(testDB.CreateOrder(&Order{}), qt.Equals, ErrInvalidData)
}

func TestOrderByCheckoutSession(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	_, err := testDB.OrderByCheckoutSession(testSessionID)
	c.Assert(err, qt.Equals, ErrNotFound)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	found, err := testDB.OrderByCheckoutSession(testSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(found.ID, qt.Equals, order.ID)
	c.Assert(found.UserID, qt.Equals, testUserID)
}

func TestMarkOrderPaid(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	c.Assert(testDB.MarkOrderPaid(testSessionID, "fo_1", 2499), qt.IsNil)
	paid, err := testDB.OrderByCheckoutSession(testSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(paid.Status, qt.Equals, OrderStatusPaid)
	c.Assert(paid.FulfillmentOrderID, qt.Equals, "fo_1")
	c.Assert(int64(paid.AmountPaid), qt.Equals, int64(2499))

	// a duplicate delivery no longer matches the conditional filter
	c.Assert(testDB.MarkOrderPaid(testSessionID, "fo_2", 2499), qt.Equals, ErrNotFound)
	same, err := testDB.OrderByCheckoutSession(testSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(same.FulfillmentOrderID, qt.Equals, "fo_1")
}

func TestSetOrderStatusTransitions(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	// pending -> processing skips paid and must be rejected
	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusProcessing, ""), qt.Equals, ErrInvalidTransition)

	c.Assert(testDB.MarkOrderPaid(testSessionID, "fo_1", 2499), qt.IsNil)
	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusProcessing, ""), qt.IsNil)
	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusShipped, ""), qt.IsNil)
	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusDelivered, ""), qt.IsNil)

	// no backward move out of a terminal state
	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusPaid, ""), qt.Equals, ErrInvalidTransition)

	// unknown order id
	err := testDB.SetOrderStatus(primitive.NewObjectID(), OrderStatusPaid, "")
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestSetOrderStatusReasons(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusNeedsReview, "missing metadata"), qt.IsNil)
	reviewed, err := testDB.Order(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(reviewed.Status, qt.Equals, OrderStatusNeedsReview)
	c.Assert(reviewed.ReviewReason, qt.Equals, "missing metadata")

	c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusCancelled, "customer request"), qt.IsNil)
	cancelled, err := testDB.Order(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(cancelled.Status, qt.Equals, OrderStatusCancelled)
	c.Assert(cancelled.CancelReason, qt.Equals, "customer request")
}

func TestUpdateOrderCheckpoint(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)

	checkpoint := &Order{
		CheckoutSessionID:    testSessionID,
		ProductName:          "Canvas Print 8x10",
		MemoryTitle:          "Summer 2024",
		MemoryImageURL:       "https://cdn.example.com/mem_1.jpg",
		FulfillmentVariantID: testVariantID,
		// a stray status here must not leak into the row
		Status: OrderStatusPaid,
	}
	c.Assert(testDB.UpdateOrderCheckpoint(checkpoint), qt.IsNil)

	updated, err := testDB.OrderByCheckoutSession(testSessionID)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.ProductName, qt.Equals, "Canvas Print 8x10")
	c.Assert(updated.FulfillmentVariantID, qt.Equals, testVariantID)
	c.Assert(updated.Status, qt.Equals, OrderStatusPending)

	c.Assert(testDB.UpdateOrderCheckpoint(&Order{CheckoutSessionID: "cs_missing"}), qt.Equals, ErrNotFound)
}

func TestOrdersByStatusAndUser(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	for i, session := range []string{"cs_a", "cs_b", "cs_c"} {
		order := testOrder()
		order.ID = primitive.NewObjectID()
		order.CheckoutSessionID = session
		c.Assert(testDB.CreateOrder(order), qt.IsNil)
		if i > 0 {
			c.Assert(testDB.SetOrderStatus(order.ID, OrderStatusFulfillmentPending, ""), qt.IsNil)
		}
	}

	pending, err := testDB.OrdersByStatus(OrderStatusFulfillmentPending, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.HasLen, 2)

	limited, err := testDB.OrdersByStatus(OrderStatusFulfillmentPending, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(limited, qt.HasLen, 1)

	byUser, err := testDB.OrdersByUser(testUserID)
	c.Assert(err, qt.IsNil)
	c.Assert(byUser, qt.HasLen, 3)
}

func TestDeleteOrder(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)
	c.Assert(testDB.DeleteOrder(order.ID), qt.IsNil)

	_, err := testDB.Order(order.ID)
	c.Assert(err, qt.Equals, ErrNotFound)

	c.Assert(testDB.DeleteOrder(order.ID), qt.Equals, ErrNotFound)
}

func TestIncOrderFulfillmentAttempts(t *testing.T) {
	c := qt.New(t)
	defer resetDB(c)

	order := testOrder()
	c.Assert(testDB.CreateOrder(order), qt.IsNil)
	c.Assert(testDB.IncOrderFulfillmentAttempts(order.ID), qt.IsNil)
	c.Assert(testDB.IncOrderFulfillmentAttempts(order.ID), qt.IsNil)

	updated, err := testDB.Order(order.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.FulfillmentAttempts, qt.Equals, 2)
}

package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/internal"
)

// CreateOrder inserts a new order row. The unique index on
// checkoutSessionID makes a concurrent duplicate insert fail with
// ErrAlreadyExists instead of producing a second row.
func (ms *MongoStorage) CreateOrder(order *Order) error {
	if order.CheckoutSessionID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if _, err := ms.orders.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// Order returns the order with the given id.
func (ms *MongoStorage) Order(orderID primitive.ObjectID) (*Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	order := &Order{}
	if err := ms.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// OrderByCheckoutSession returns the order created for the given checkout
// session id, the idempotency key of the webhook flow.
func (ms *MongoStorage) OrderByCheckoutSession(sessionID string) (*Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	order := &Order{}
	if err := ms.orders.FindOne(ctx, bson.M{"checkoutSessionID": sessionID}).Decode(order); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateOrderCheckpoint persists the non-zero fields of the given order,
// keyed by checkout session id. Used between saga steps to record resolved
// metadata and denormalized display fields without touching the status.
func (ms *MongoStorage) UpdateOrderCheckpoint(order *Order) error {
	if order.CheckoutSessionID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	order.UpdatedAt = time.Now()
	updateDoc, err := dynamicUpdateDocument(order, []string{"updatedAt"})
	if err != nil {
		return err
	}
	// never move the status through this path, the guarded setters own it
	delete(updateDoc["$set"].(bson.M), "status")
	res, err := ms.orders.UpdateOne(ctx, bson.M{"checkoutSessionID": order.CheckoutSessionID}, updateDoc)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOrderPaid advances the order for the given checkout session to paid,
// recording the fulfillment order id and the captured amount. The filter
// encodes the expected prior states so a concurrent duplicate delivery
// degrades to ErrNotFound instead of double-applying the transition.
func (ms *MongoStorage) MarkOrderPaid(
	sessionID, fulfillmentOrderID string, amountPaid internal.Cents,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	filter := bson.M{
		"checkoutSessionID": sessionID,
		"status": bson.M{"$in": []OrderStatus{
			OrderStatusPending, OrderStatusFulfillmentPending, OrderStatusNeedsReview,
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":             OrderStatusPaid,
		"fulfillmentOrderID": fulfillmentOrderID,
		"amountPaid":         amountPaid,
		"updatedAt":          time.Now(),
	}}
	res, err := ms.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOrderStatus moves the order to the given status. The update filter only
// matches statuses from which the transition is legal, so a racing writer
// loses cleanly with ErrInvalidTransition.
func (ms *MongoStorage) SetOrderStatus(orderID primitive.ObjectID, status OrderStatus, reason string) error {
	allowedFrom := statusesAllowing(status)
	if len(allowedFrom) == 0 {
		return ErrInvalidTransition
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	set := bson.M{"status": status, "updatedAt": time.Now()}
	switch status {
	case OrderStatusNeedsReview, OrderStatusFulfillmentFailed:
		set["reviewReason"] = reason
	case OrderStatusCancelled, OrderStatusRefunded:
		set["cancelReason"] = reason
	}
	filter := bson.M{"_id": orderID, "status": bson.M{"$in": allowedFrom}}
	res, err := ms.orders.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set order status: %w", err)
	}
	if res.MatchedCount == 0 {
		// distinguish a missing order from an illegal transition
		if _, err := ms.Order(orderID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// SetOrderStatusBySession is SetOrderStatus keyed by checkout session id,
// for webhook paths that never learned the local order id.
func (ms *MongoStorage) SetOrderStatusBySession(sessionID string, status OrderStatus, reason string) error {
	order, err := ms.OrderByCheckoutSession(sessionID)
	if err != nil {
		return err
	}
	return ms.SetOrderStatus(order.ID, status, reason)
}

// IncOrderFulfillmentAttempts bumps the retry counter for observability.
func (ms *MongoStorage) IncOrderFulfillmentAttempts(orderID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	_, err := ms.orders.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{
		"$inc": bson.M{"fulfillmentAttempts": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	return err
}

// OrdersByStatus returns up to limit orders in the given status, oldest
// first. The fulfillment retry worker scans fulfillment_pending with it.
func (ms *MongoStorage) OrdersByStatus(status OrderStatus, limit int64) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := ms.orders.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	return decodeOrders(ctx, cursor)
}

// Orders returns up to limit orders regardless of status, newest first.
func (ms *MongoStorage) Orders(limit int64) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cursor, err := ms.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	return decodeOrders(ctx, cursor)
}

// OrdersByUser returns the user's orders, newest first.
func (ms *MongoStorage) OrdersByUser(userID string) ([]*Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.orders.Find(ctx, bson.M{"userID": userID}, opts)
	if err != nil {
		return nil, err
	}
	return decodeOrders(ctx, cursor)
}

// DeleteOrder removes an order row entirely. This destroys audit history and
// is reserved for the explicitly-audited admin operation; cancellations go
// through SetOrderStatus instead.
func (ms *MongoStorage) DeleteOrder(orderID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	res, err := ms.orders.DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeOrders(ctx context.Context, cursor *mongo.Cursor) ([]*Order, error) {
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close orders cursor", "error", err)
		}
	}()
	var orders []*Order
	for cursor.Next(ctx) {
		order := &Order{}
		if err := cursor.Decode(order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// UpsertSubscription inserts or updates the subscription row keyed by the
// provider subscription id in a single atomic statement, so concurrent
// created/updated deliveries for the same subscription cannot lose updates.
func (ms *MongoStorage) UpsertSubscription(subscription *Subscription) error {
	if subscription.StripeSubscriptionID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	now := time.Now()
	filter := bson.M{"stripeSubscriptionID": subscription.StripeSubscriptionID}
	update := bson.M{
		"$set": bson.M{
			"userID":             subscription.UserID,
			"packageID":          subscription.PackageID,
			"packageName":        subscription.PackageName,
			"stripeCustomerID":   subscription.StripeCustomerID,
			"status":             subscription.Status,
			"currentPeriodStart": subscription.CurrentPeriodStart,
			"currentPeriodEnd":   subscription.CurrentPeriodEnd,
			"amountPaid":         subscription.AmountPaid,
			"billingCycle":       subscription.BillingCycle,
			"updatedAt":          now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.subscriptions.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// SupersedeUserSubscriptions marks every active or trialing row of the user
// as canceled, except the one with the given provider subscription id. A new
// activation replaces, never duplicates, a prior active subscription.
func (ms *MongoStorage) SupersedeUserSubscriptions(userID, keepStripeSubscriptionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	filter := bson.M{
		"userID":               userID,
		"status":               bson.M{"$in": []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing}},
		"stripeSubscriptionID": bson.M{"$ne": keepStripeSubscriptionID},
	}
	update := bson.M{"$set": bson.M{"status": SubscriptionStatusCanceled, "updatedAt": time.Now()}}
	res, err := ms.subscriptions.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to supersede subscriptions: %w", err)
	}
	if res.ModifiedCount > 0 {
		log.Infow("superseded prior active subscriptions",
			"userID", userID, "count", res.ModifiedCount)
	}
	return nil
}

// CancelActiveSubscription marks the user's currently-active row canceled.
// When no active row exists this is a no-op, not an error.
func (ms *MongoStorage) CancelActiveSubscription(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	filter := bson.M{
		"userID": userID,
		"status": bson.M{"$in": []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing}},
	}
	update := bson.M{"$set": bson.M{"status": SubscriptionStatusCanceled, "updatedAt": time.Now()}}
	if _, err := ms.subscriptions.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

// SubscriptionByStripeID returns the row for the given provider id.
func (ms *MongoStorage) SubscriptionByStripeID(stripeSubscriptionID string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	subscription := &Subscription{}
	err := ms.subscriptions.FindOne(ctx, bson.M{"stripeSubscriptionID": stripeSubscriptionID}).Decode(subscription)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return subscription, nil
}

// ActiveSubscriptionByUser returns the user's active (or trialing) row,
// ErrNotFound when none exists.
func (ms *MongoStorage) ActiveSubscriptionByUser(userID string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	filter := bson.M{
		"userID": userID,
		"status": bson.M{"$in": []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	subscription := &Subscription{}
	if err := ms.subscriptions.FindOne(ctx, filter, opts).Decode(subscription); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return subscription, nil
}

// SubscriptionsByUser returns every subscription row of the user, newest
// first, for the account history view.
func (ms *MongoStorage) SubscriptionsByUser(userID string) ([]*Subscription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := ms.subscriptions.Find(ctx, bson.M{"userID": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close subscriptions cursor", "error", err)
		}
	}()
	var subscriptions []*Subscription
	for cursor.Next(ctx) {
		subscription := &Subscription{}
		if err := cursor.Decode(subscription); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

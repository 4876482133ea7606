package db

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// initCollections creates the collections in the MongoDB database if they
// don't exist yet.
func (ms *MongoStorage) initCollections(database string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// get the current collections names to create only the missing ones
	currentCollections, err := ms.collectionNames(ctx, database)
	if err != nil {
		return err
	}
	getCollection := func(name string) (*mongo.Collection, error) {
		alreadyCreated := false
		for _, c := range currentCollections {
			if c == name {
				alreadyCreated = true
				break
			}
		}
		if !alreadyCreated {
			if err := ms.client.Database(database).CreateCollection(ctx, name); err != nil {
				return nil, err
			}
		}
		return ms.client.Database(database).Collection(name), nil
	}
	if ms.orders, err = getCollection("orders"); err != nil {
		return err
	}
	if ms.subscriptions, err = getCollection("subscriptions"); err != nil {
		return err
	}
	if ms.products, err = getCollection("products"); err != nil {
		return err
	}
	if ms.memories, err = getCollection("memories"); err != nil {
		return err
	}
	if ms.users, err = getCollection("users"); err != nil {
		return err
	}
	if ms.packages, err = getCollection("packages"); err != nil {
		return err
	}
	if ms.audit, err = getCollection("audit"); err != nil {
		return err
	}
	return nil
}

// collectionNames returns the names of the collections in the given database.
func (ms *MongoStorage) collectionNames(ctx context.Context, database string) ([]string, error) {
	collectionsCursor, err := ms.client.Database(database).ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := collectionsCursor.Close(ctx); err != nil {
			log.Warnw("failed to close collections cursor", "error", err)
		}
	}()
	collections := []bson.D{}
	if err := collectionsCursor.All(ctx, &collections); err != nil {
		return nil, err
	}
	names := []string{}
	for _, col := range collections {
		for _, v := range col {
			if v.Key == "name" {
				names = append(names, v.Value.(string))
			}
		}
	}
	return names, nil
}

// createIndexes creates the indexes for the collections. Add more indexes
// here as needed.
func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	// the unique index on checkoutSessionID is the webhook idempotency
	// guarantee: a duplicate delivery can never create a second order
	orderSessionIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "checkoutSessionID", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := ms.orders.Indexes().CreateOne(ctx, orderSessionIndex); err != nil {
		return fmt.Errorf("failed to create index on checkoutSessionID for orders: %w", err)
	}
	orderStatusIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}},
	}
	if _, err := ms.orders.Indexes().CreateOne(ctx, orderStatusIndex); err != nil {
		return fmt.Errorf("failed to create index on status for orders: %w", err)
	}
	orderUserIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userID", Value: 1}, {Key: "createdAt", Value: -1}},
	}
	if _, err := ms.orders.Indexes().CreateOne(ctx, orderUserIndex); err != nil {
		return fmt.Errorf("failed to create index on userID for orders: %w", err)
	}
	// one subscription row per provider subscription id
	subscriptionIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "stripeSubscriptionID", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := ms.subscriptions.Indexes().CreateOne(ctx, subscriptionIDIndex); err != nil {
		return fmt.Errorf("failed to create index on stripeSubscriptionID for subscriptions: %w", err)
	}
	subscriptionUserIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userID", Value: 1}, {Key: "status", Value: 1}},
	}
	if _, err := ms.subscriptions.Indexes().CreateOne(ctx, subscriptionUserIndex); err != nil {
		return fmt.Errorf("failed to create index on userID for subscriptions: %w", err)
	}
	userAuthIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "authID", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}
	if _, err := ms.users.Indexes().CreateOne(ctx, userAuthIndex); err != nil {
		return fmt.Errorf("failed to create index on authID for users: %w", err)
	}
	userCustomerIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "stripeCustomerID", Value: 1}},
		Options: options.Index().SetSparse(true),
	}
	if _, err := ms.users.Indexes().CreateOne(ctx, userCustomerIndex); err != nil {
		return fmt.Errorf("failed to create index on stripeCustomerID for users: %w", err)
	}
	return nil
}

// dynamicUpdateDocument creates a BSON update document from a struct, including only non-zero fields.
// It uses reflection to iterate over the struct fields and create the update document.
// The struct fields must have a bson tag to be included in the update document.
// The _id field is skipped.
func dynamicUpdateDocument(item interface{}, alwaysUpdateTags []string) (bson.M, error) {
	val := reflect.ValueOf(item)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a valid struct")
	}
	update := bson.M{}
	typ := val.Type()
	alwaysUpdateMap := make(map[string]bool, len(alwaysUpdateTags))
	for _, tag := range alwaysUpdateTags {
		alwaysUpdateMap[tag] = true
	}
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanInterface() {
			continue
		}
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("bson")
		if comma := strings.Index(tag, ","); comma >= 0 {
			tag = tag[:comma]
		}
		if tag == "" || tag == "-" || tag == "_id" {
			continue
		}
		// check if the field should always be updated or is not the zero value
		_, alwaysUpdate := alwaysUpdateMap[tag]
		if alwaysUpdate || !reflect.DeepEqual(field.Interface(), reflect.Zero(field.Type()).Interface()) {
			update[tag] = field.Interface()
		}
	}
	return bson.M{"$set": update}, nil
}

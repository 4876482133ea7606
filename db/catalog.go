package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The catalog collections (products, memories, users) are owned by the
// storefront CRUD and upload flows. The payment pipeline reads them through
// the lookups below and never mutates them; the setters exist for that owner
// code and for tests.

// Product returns the catalog product with the given id.
func (ms *MongoStorage) Product(productID string) (*Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	product := &Product{}
	if err := ms.products.FindOne(ctx, bson.M{"_id": productID}).Decode(product); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// SetProduct creates or updates a catalog product.
func (ms *MongoStorage) SetProduct(product *Product) error {
	if product.ID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	updateDoc, err := dynamicUpdateDocument(product, []string{"active"})
	if err != nil {
		return err
	}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.products.UpdateOne(ctx, bson.M{"_id": product.ID}, updateDoc, opts); err != nil {
		return fmt.Errorf("failed to set product: %w", err)
	}
	return nil
}

// Memory returns the keepsake memory with the given id.
func (ms *MongoStorage) Memory(memoryID string) (*Memory, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	memory := &Memory{}
	if err := ms.memories.FindOne(ctx, bson.M{"_id": memoryID}).Decode(memory); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return memory, nil
}

// SetMemory creates or updates a memory.
func (ms *MongoStorage) SetMemory(memory *Memory) error {
	if memory.ID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now()
	}
	updateDoc, err := dynamicUpdateDocument(memory, nil)
	if err != nil {
		return err
	}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.memories.UpdateOne(ctx, bson.M{"_id": memory.ID}, updateDoc, opts); err != nil {
		return fmt.Errorf("failed to set memory: %w", err)
	}
	return nil
}

// User returns the user with the given local id.
func (ms *MongoStorage) User(userID string) (*User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	user := &User{}
	if err := ms.users.FindOne(ctx, bson.M{"_id": userID}).Decode(user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UserByAuthID resolves a user from the external authentication id.
func (ms *MongoStorage) UserByAuthID(authID string) (*User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	user := &User{}
	if err := ms.users.FindOne(ctx, bson.M{"authID": authID}).Decode(user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UserByStripeCustomer resolves a user from the payment provider customer id.
func (ms *MongoStorage) UserByStripeCustomer(customerID string) (*User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	user := &User{}
	if err := ms.users.FindOne(ctx, bson.M{"stripeCustomerID": customerID}).Decode(user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUser creates or updates a user.
func (ms *MongoStorage) SetUser(user *User) error {
	if user.ID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	updateDoc, err := dynamicUpdateDocument(user, nil)
	if err != nil {
		return err
	}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.users.UpdateOne(ctx, bson.M{"_id": user.ID}, updateDoc, opts); err != nil {
		return fmt.Errorf("failed to set user: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// GetPackage returns the subscription package with the given id.
func (ms *MongoStorage) GetPackage(packageID string) (*Package, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	pkg := &Package{}
	if err := ms.packages.FindOne(ctx, bson.M{"_id": packageID}).Decode(pkg); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

// SetPackage creates or updates a subscription package.
func (ms *MongoStorage) SetPackage(pkg *Package) error {
	if pkg.ID == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	updateDoc, err := dynamicUpdateDocument(pkg, nil)
	if err != nil {
		return err
	}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.packages.UpdateOne(ctx, bson.M{"_id": pkg.ID}, updateDoc, opts); err != nil {
		return fmt.Errorf("failed to set package: %w", err)
	}
	return nil
}

// Packages returns every subscription package.
func (ms *MongoStorage) Packages() ([]*Package, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	cursor, err := ms.packages.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close packages cursor", "error", err)
		}
	}()
	var packages []*Package
	for cursor.Next(ctx) {
		pkg := &Package{}
		if err := cursor.Decode(pkg); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}

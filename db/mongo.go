// Package db provides the MongoDB-backed persistence layer for orders,
// subscriptions and the read-only catalog collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

// MongoStorage uses an external MongoDB service for storing orders,
// subscriptions and the storefront catalog.
type MongoStorage struct {
	client   *mongo.Client
	database string

	orders        *mongo.Collection
	subscriptions *mongo.Collection
	products      *mongo.Collection
	memories      *mongo.Collection
	users         *mongo.Collection
	packages      *mongo.Collection
	audit         *mongo.Collection
}

func New(url, database string) (*MongoStorage, error) {
	ms := &MongoStorage{}
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "url", url, "database", database)
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	// create a new client with the connection options
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// init the collections
	ms.client = client
	ms.database = database
	if err := ms.initCollections(database); err != nil {
		return nil, err
	}
	if err := ms.createIndexes(); err != nil {
		return nil, err
	}
	return ms, nil
}

func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.client.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops every collection and recreates the indexes. Used by tests.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, col := range []*mongo.Collection{
		ms.orders, ms.subscriptions, ms.products, ms.memories,
		ms.users, ms.packages, ms.audit,
	} {
		if err := col.Drop(ctx); err != nil {
			return err
		}
	}
	if err := ms.initCollections(ms.database); err != nil {
		return err
	}
	return ms.createIndexes()
}

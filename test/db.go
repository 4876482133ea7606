// Package test provides shared helpers for integration tests.
package test

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// StartMongoContainer starts a MongoDB container for testing.
func StartMongoContainer(ctx context.Context) (*mongodb.MongoDBContainer, error) {
	return mongodb.Run(ctx, "mongo:7")
}

// RandomDatabaseName returns a unique database name so parallel test
// packages never collide on the same container.
func RandomDatabaseName() string {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("test_%d", rnd.Int63())
}

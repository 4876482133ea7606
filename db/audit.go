package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// AddAuditEntry records an admin compensating action. Compensations are
// never silent; every cancel, refund and hard delete leaves a row here.
func (ms *MongoStorage) AddAuditEntry(entry *AuditEntry) error {
	if entry.AdminID == "" || entry.Action == "" {
		return ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := ms.audit.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// AuditEntriesByOrder returns the compensation history of an order, oldest
// first.
func (ms *MongoStorage) AuditEntriesByOrder(orderID string) ([]*AuditEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := ms.audit.Find(ctx, bson.M{"orderID": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			log.Warnw("failed to close audit cursor", "error", err)
		}
	}()
	var entries []*AuditEntry
	for cursor.Next(ctx) {
		entry := &AuditEntry{}
		if err := cursor.Decode(entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

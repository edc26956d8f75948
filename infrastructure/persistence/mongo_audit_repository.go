package persistence

import (
	"context"
	"fmt"

	"brokerage-gateway/domain/model"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoAuditRepository appends audit records as documents.
type MongoAuditRepository struct {
	collection *mongo.Collection
}

func NewMongoAuditRepository(client *mongo.Client, database, collection string) *MongoAuditRepository {
	return &MongoAuditRepository{collection: client.Database(database).Collection(collection)}
}

func (r *MongoAuditRepository) Append(ctx context.Context, rec model.AuditRecord) error {
	if _, err := r.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert audit document: %w", err)
	}
	return nil
}

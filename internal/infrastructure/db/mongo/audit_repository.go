package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trackhub/auth-service/internal/core/domain"
)

const auditCollection = "auth_audit"

// AuditRepository implements ports.AuditLog using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// Record appends an audit event to the auth_audit collection.
func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	doc := bson.M{
		"action": string(event.Action),
		"email":  event.Email,
		"at":     event.At.UTC(),
	}
	if event.AccountID != "" {
		doc["account_id"] = event.AccountID
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

const auditEventCollection = "audit_events"

// MongoDBSink persists audit events in MongoDB. Events are insert-only;
// there is no update or delete path.
type MongoDBSink struct {
	db *mongo.Database
}

// NewMongoDBSink creates a new MongoDB audit sink.
func NewMongoDBSink(db *mongo.Database) *MongoDBSink {
	return &MongoDBSink{db: db}
}

// Append inserts the event.
func (s *MongoDBSink) Append(ctx context.Context, event *types.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	_, err := s.db.Collection(auditEventCollection).InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Events returns events matching the filters, oldest first.
func (s *MongoDBSink) Events(ctx context.Context, filters map[string]string) ([]*types.AuditEvent, error) {
	query := bson.M{}
	for key, value := range filters {
		switch key {
		case "actor", "action", "region", "outcome":
			query[key] = value
		case "resourceId":
			query["resourceId"] = value
		default:
			return nil, fmt.Errorf("unsupported audit filter: %q", key)
		}
	}

	cursor, err := s.db.Collection(auditEventCollection).Find(
		ctx,
		query,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*types.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

var (
	_ interfaces.AuditSink    = (*MongoDBSink)(nil)
	_ interfaces.AuditQuerier = (*MongoDBSink)(nil)
)

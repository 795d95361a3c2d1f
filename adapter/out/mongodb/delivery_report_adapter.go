// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
)

const (
	collectionDeliveryReports = "push_delivery_reports"

	// Reports are diagnostics, not records; they expire after a month.
	deliveryReportTTL = 30 * 24 * time.Hour
)

// =============================================================================
// MongoDB Delivery Report Adapter
// =============================================================================

// DeliveryReportAdapter implements out.DeliveryReportStore using MongoDB.
type DeliveryReportAdapter struct {
	collection *mongo.Collection
}

// NewDeliveryReportAdapter creates a new delivery report adapter.
func NewDeliveryReportAdapter(db *mongo.Database) *DeliveryReportAdapter {
	return &DeliveryReportAdapter{collection: db.Collection(collectionDeliveryReports)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *DeliveryReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "sent_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "sent_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(deliveryReportTTL.Seconds())),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// deliveryReportDoc stores user ids as strings; the driver has no native
// encoding for uuid.UUID.
type deliveryReportDoc struct {
	UserID         string    `bson:"user_id"`
	Endpoint       string    `bson:"endpoint"`
	NotificationID string    `bson:"notification_id"`
	Success        bool      `bson:"success"`
	StatusCode     int       `bson:"status_code,omitempty"`
	Error          string    `bson:"error,omitempty"`
	Deactivated    bool      `bson:"deactivated,omitempty"`
	SentAt         time.Time `bson:"sent_at"`
}

func toDoc(report *domain.PushDeliveryReport) *deliveryReportDoc {
	return &deliveryReportDoc{
		UserID:         report.UserID.String(),
		Endpoint:       report.Endpoint,
		NotificationID: report.NotificationID,
		Success:        report.Success,
		StatusCode:     report.StatusCode,
		Error:          report.Error,
		Deactivated:    report.Deactivated,
		SentAt:         report.SentAt,
	}
}

func (d *deliveryReportDoc) toDomain() *domain.PushDeliveryReport {
	userID, _ := uuid.Parse(d.UserID)
	return &domain.PushDeliveryReport{
		UserID:         userID,
		Endpoint:       d.Endpoint,
		NotificationID: d.NotificationID,
		Success:        d.Success,
		StatusCode:     d.StatusCode,
		Error:          d.Error,
		Deactivated:    d.Deactivated,
		SentAt:         d.SentAt,
	}
}

// Record archives one dispatch outcome.
func (a *DeliveryReportAdapter) Record(ctx context.Context, report *domain.PushDeliveryReport) error {
	_, err := a.collection.InsertOne(ctx, toDoc(report))
	return err
}

// ListForUser returns the user's most recent reports, newest first.
func (a *DeliveryReportAdapter) ListForUser(ctx context.Context, userID uuid.UUID, limit int64) ([]*domain.PushDeliveryReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []deliveryReportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	reports := make([]*domain.PushDeliveryReport, 0, len(docs))
	for i := range docs {
		reports = append(reports, docs[i].toDomain())
	}
	return reports, nil
}

var _ out.DeliveryReportStore = (*DeliveryReportAdapter)(nil)

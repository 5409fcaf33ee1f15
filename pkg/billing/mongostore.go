package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/emtchat/emtkit/pkg/entitlement"
)

// MongoStore persists subscription records in MongoDB. Deployments that run
// on Mongo instead of Postgres plug this in behind the same Store interface.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Mongo-backed store using the given database's
// billing_subscriptions collection. Panics if db is nil.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("billing: mongo database is required")
	}
	return &MongoStore{coll: db.Collection("billing_subscriptions")}
}

type mongoRecord struct {
	TenantID          string    `bson:"_id"`
	Tier              string    `bson:"tier"`
	Interval          string    `bson:"billing_interval"`
	Status            string    `bson:"status"`
	ProviderSubID     string    `bson:"provider_sub_id"`
	ProviderCustomer  string    `bson:"provider_customer_id"`
	PriceID           string    `bson:"price_id"`
	CancelAtPeriodEnd bool      `bson:"cancel_at_period_end"`
	CurrentPeriodEnd  time.Time `bson:"current_period_end"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func (s *MongoStore) Get(ctx context.Context, tenantID uuid.UUID) (*Record, error) {
	return s.findOne(ctx, bson.M{"_id": tenantID.String()})
}

func (s *MongoStore) GetByProviderSubID(ctx context.Context, providerSubID string) (*Record, error) {
	return s.findOne(ctx, bson.M{"provider_sub_id": providerSubID})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Record, error) {
	var doc mongoRecord
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreFailed, fmt.Errorf("find subscription: %w", err))
	}

	tenantID, err := uuid.Parse(doc.TenantID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, fmt.Errorf("parse tenant ID %q: %w", doc.TenantID, err))
	}

	return &Record{
		TenantID:          tenantID,
		Tier:              entitlement.ParseTier(doc.Tier),
		Interval:          entitlement.BillingInterval(doc.Interval),
		Status:            doc.Status,
		ProviderSubID:     doc.ProviderSubID,
		ProviderCustomer:  doc.ProviderCustomer,
		PriceID:           doc.PriceID,
		CancelAtPeriodEnd: doc.CancelAtPeriodEnd,
		CurrentPeriodEnd:  doc.CurrentPeriodEnd,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, rec *Record) error {
	doc := mongoRecord{
		TenantID:          rec.TenantID.String(),
		Tier:              rec.Tier.String(),
		Interval:          string(rec.Interval),
		Status:            rec.Status,
		ProviderSubID:     rec.ProviderSubID,
		ProviderCustomer:  rec.ProviderCustomer,
		PriceID:           rec.PriceID,
		CancelAtPeriodEnd: rec.CancelAtPeriodEnd,
		CurrentPeriodEnd:  rec.CurrentPeriodEnd,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": doc.TenantID},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailed, fmt.Errorf("save subscription: %w", err))
	}
	return nil
}

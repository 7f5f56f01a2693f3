package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStore persists billing records as fields of user documents. Every
// mutation is a single UpdateOne with a filter that encodes its precondition,
// so concurrent webhooks and user requests serialize at the document without
// explicit locks.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps the given collection (conventionally "users").
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	if coll == nil {
		panic("billing: mongo collection is required")
	}
	return &MongoStore{coll: coll}
}

// billingDoc is the persisted shape of the billing fields on a user document.
type billingDoc struct {
	ID             string     `bson:"_id"`
	CustomerID     string     `bson:"customer_id,omitempty"`
	SubscriptionID string     `bson:"subscription_id,omitempty"`
	Status         string     `bson:"subscription_status,omitempty"`
	PlanID         string     `bson:"plan_id,omitempty"`
	PlanKind       string     `bson:"plan_kind,omitempty"`
	ExpiresAt      *time.Time `bson:"subscription_expires_at,omitempty"`
	TrialAvailable bool       `bson:"trial_available"`
	TrialUsed      bool       `bson:"trial_used"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func (d *billingDoc) toRecord() (*Record, error) {
	userID, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("billing: malformed user id %q: %w", d.ID, err)
	}
	return &Record{
		UserID:         userID,
		CustomerID:     d.CustomerID,
		SubscriptionID: d.SubscriptionID,
		Status:         Status(d.Status),
		PlanID:         d.PlanID,
		PlanKind:       PlanKind(d.PlanKind),
		ExpiresAt:      d.ExpiresAt,
		TrialAvailable: d.TrialAvailable,
		TrialUsed:      d.TrialUsed,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var doc billingDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("billing: fetch record: %w", err)
	}
	return doc.toRecord()
}

func (s *MongoStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	if subscriptionID == "" {
		return nil, ErrRecordNotFound
	}
	var doc billingDoc
	err := s.coll.FindOne(ctx, bson.M{"subscription_id": subscriptionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("billing: fetch record by subscription: %w", err)
	}
	return doc.toRecord()
}

func (s *MongoStore) SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	// The filter only matches while the reference is unset, so the first
	// writer wins and retries become no-ops.
	filter := bson.M{
		"_id": userID.String(),
		"$or": bson.A{
			bson.M{"customer_id": bson.M{"$exists": false}},
			bson.M{"customer_id": ""},
		},
	}
	update := bson.M{"$set": bson.M{
		"customer_id": customerID,
		"updated_at":  time.Now().UTC(),
	}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("billing: persist customer reference: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the user is gone or the reference is already set.
		if _, err := s.Get(ctx, userID); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// ApplyCheckout uses a pipeline update: the customer reference, once set,
// never changes, and only an update expression can keep that guarantee in
// the same single write that attaches the subscription.
func (s *MongoStore) ApplyCheckout(ctx context.Context, userID uuid.UUID, attach CheckoutAttach) error {
	set := bson.M{
		"subscription_id":     attach.SubscriptionID,
		"plan_id":             attach.PlanID,
		"plan_kind":           string(attach.PlanKind),
		"subscription_status": string(attach.Status),
		"updated_at":          time.Now().UTC(),
	}
	if attach.CustomerID != "" {
		set["customer_id"] = bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$customer_id", ""}}, ""}},
			attach.CustomerID,
			"$customer_id",
		}}
	}
	if attach.ExpiresAt != nil {
		set["subscription_expires_at"] = *attach.ExpiresAt
	} else {
		set["subscription_expires_at"] = "$$REMOVE"
	}
	if attach.PlanKind == PlanTrial {
		set["trial_available"] = false
		set["trial_used"] = true
	}

	update := mongo.Pipeline{{{Key: "$set", Value: set}}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID.String()}, update)
	if err != nil {
		return fmt.Errorf("billing: attach subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) ApplyRenewal(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time) error {
	return s.updateBySubscription(ctx, subscriptionID, bson.M{
		"subscription_status": string(status),
	}, expiresAt)
}

func (s *MongoStore) ApplyPlanChange(ctx context.Context, subscriptionID string, status Status, expiresAt *time.Time, planID string, kind PlanKind) error {
	return s.updateBySubscription(ctx, subscriptionID, bson.M{
		"subscription_status": string(status),
		"plan_id":             planID,
		"plan_kind":           string(kind),
	}, expiresAt)
}

func (s *MongoStore) ApplyCancellation(ctx context.Context, subscriptionID string, endedAt time.Time) error {
	if subscriptionID == "" {
		return ErrRecordNotFound
	}
	update := bson.M{
		"$set": bson.M{
			"subscription_status":     string(StatusCanceled),
			"subscription_expires_at": endedAt,
			"updated_at":              time.Now().UTC(),
		},
		"$unset": bson.M{
			"subscription_id": "",
			"plan_id":         "",
			"plan_kind":       "",
		},
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"subscription_id": subscriptionID}, update)
	if err != nil {
		return fmt.Errorf("billing: detach subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) updateBySubscription(ctx context.Context, subscriptionID string, set bson.M, expiresAt *time.Time) error {
	if subscriptionID == "" {
		return ErrRecordNotFound
	}
	set["updated_at"] = time.Now().UTC()
	update := bson.M{"$set": set}
	if expiresAt != nil {
		set["subscription_expires_at"] = *expiresAt
	} else {
		update["$unset"] = bson.M{"subscription_expires_at": ""}
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"subscription_id": subscriptionID}, update)
	if err != nil {
		return fmt.Errorf("billing: refresh subscription state: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

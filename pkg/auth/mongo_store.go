package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoUserStore persists users in a MongoDB collection. Billing state lives
// on the same documents, so a new user document carries the billing defaults
// and later billing updates stay single-document.
type MongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore creates a user store over the given collection.
func NewMongoUserStore(coll *mongo.Collection) *MongoUserStore {
	if coll == nil {
		panic("auth: mongo collection is required")
	}
	return &MongoUserStore{coll: coll}
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name,omitempty"`
	AvatarURL string    `bson:"avatar_url,omitempty"`
	GoogleID  string    `bson:"google_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`

	// Billing defaults for new accounts.
	TrialAvailable bool `bson:"trial_available"`
	TrialUsed      bool `bson:"trial_used"`
}

func (s *MongoUserStore) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.findOne(ctx, bson.M{"google_id": googleID})
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) Create(ctx context.Context, user *User) error {
	doc := userDoc{
		ID:             user.ID.String(),
		Email:          user.Email,
		Name:           user.Name,
		AvatarURL:      user.AvatarURL,
		GoogleID:       user.GoogleID,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
		TrialAvailable: true,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

func (s *MongoUserStore) LinkGoogleID(ctx context.Context, userID uuid.UUID, googleID, name, avatarURL string) error {
	set := bson.M{
		"google_id":  googleID,
		"updated_at": time.Now().UTC(),
	}
	if name != "" {
		set["name"] = name
	}
	if avatarURL != "" {
		set["avatar_url"] = avatarURL
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID.String()}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:        id,
		Email:     doc.Email,
		Name:      doc.Name,
		AvatarURL: doc.AvatarURL,
		GoogleID:  doc.GoogleID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

var _ UserStore = (*MongoUserStore)(nil)

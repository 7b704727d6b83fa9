package settings

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sso312/querylens/internal/apperr"
)

// MongoStore is the production Store implementation, matching spec §5's
// "external settings store (MongoDB-style with serverSelectionTimeoutMS=
// 2000)" verbatim.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore connects with the spec-mandated 2000ms server-selection
// timeout. A connection failure here is an Infrastructure error (spec §7);
// callers are expected to fall through to settings defaults, matching the
// orchestrator's tolerant-degradation policy for every other collaborator.
func NewMongoStore(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, apperr.Infrastructure("connect to settings store", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, apperr.Infrastructure("ping settings store", err)
	}
	return &MongoStore{collection: client.Database(database).Collection(collection)}, nil
}

// Get fetches the profile for userKey ("user::<id>" or "__global__"),
// returning an empty-scope Profile (never an error) on a document-not-found
// result, since an absent profile simply means "no scope configured".
func (s *MongoStore) Get(ctx context.Context, userKey string) (Profile, error) {
	var p Profile
	err := s.collection.FindOne(ctx, bson.M{"user_id": userKey}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return Profile{UserID: userKey}, nil
	}
	if err != nil {
		return Profile{}, apperr.Infrastructure(fmt.Sprintf("fetch settings for %q", userKey), err)
	}
	return p, nil
}

// Put upserts a user's profile, backing the admin settings write endpoint
// (spec §6 GET/POST /admin/settings/...).
func (s *MongoStore) Put(ctx context.Context, p Profile) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"user_id": p.UserID}, p, opts)
	if err != nil {
		return apperr.Infrastructure(fmt.Sprintf("upsert settings for %q", p.UserID), err)
	}
	return nil
}

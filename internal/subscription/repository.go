package subscription

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrLinkNotFound is returned when a link id does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// Repository defines persistence operations for users, subscriptions and links.
// The Ensure* methods are atomic find-or-create: calling them concurrently with
// identical arguments must yield a single record.
type Repository interface {
	EnsureUser(ctx context.Context, id string) error
	EnsureSubscription(ctx context.Context, attr, value string) (*Subscription, error)
	EnsureLink(ctx context.Context, userID, subID string, added time.Time) error

	LinksByUser(ctx context.Context, userID string) ([]Link, error)
	SubscriptionsByIDs(ctx context.Context, ids []string) (map[string]Subscription, error)

	DeleteLink(ctx context.Context, id string) error
	DeleteUserLinks(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error

	DistinctAttributes(ctx context.Context) ([]string, error)
	FindSubscriptions(ctx context.Context, attr, value string) ([]Subscription, error)
	SubscriberIDs(ctx context.Context, subID string) ([]string, error)
}

// MongoRepository implements Repository on the users/subs/links collections.
type MongoRepository struct {
	users *mongo.Collection
	subs  *mongo.Collection
	links *mongo.Collection
}

// NewMongoRepository creates a repository over the given database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		users: db.Collection("users"),
		subs:  db.Collection("subs"),
		links: db.Collection("links"),
	}
}

func (r *MongoRepository) EnsureUser(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$setOnInsert": filter}
	opts := options.Update().SetUpsert(true)
	_, err := r.users.UpdateOne(ctx, filter, update, opts)
	return err
}

// EnsureSubscription finds or creates the unique (attr, value) document.
// FindOneAndUpdate with upsert keeps this a single server-side operation so
// two racing adds converge on one record (backed by the unique index).
func (r *MongoRepository) EnsureSubscription(ctx context.Context, attr, value string) (*Subscription, error) {
	filter := bson.M{"attr": attr, "value": value}
	update := bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID().Hex()}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var sub Subscription
	if err := r.subs.FindOneAndUpdate(ctx, filter, update, opts).Decode(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// EnsureLink finds or creates the (user, sub) link. The added timestamp is
// only written on insert, so re-adding an identical subscription keeps the
// original ordering position.
func (r *MongoRepository) EnsureLink(ctx context.Context, userID, subID string, added time.Time) error {
	filter := bson.M{"user": userID, "sub": subID}
	update := bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID().Hex(), "added": added}}
	opts := options.Update().SetUpsert(true)
	_, err := r.links.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *MongoRepository) LinksByUser(ctx context.Context, userID string) ([]Link, error) {
	opts := options.Find().SetSort(bson.D{{Key: "added", Value: 1}})
	cur, err := r.links.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Link{}
	for cur.Next(ctx) {
		var l Link
		if err := cur.Decode(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, cur.Err()
}

func (r *MongoRepository) SubscriptionsByIDs(ctx context.Context, ids []string) (map[string]Subscription, error) {
	out := map[string]Subscription{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.subs.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var s Subscription
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, cur.Err()
}

func (r *MongoRepository) DeleteLink(ctx context.Context, id string) error {
	res, err := r.links.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteUserLinks(ctx context.Context, userID string) error {
	_, err := r.links.DeleteMany(ctx, bson.M{"user": userID})
	return err
}

func (r *MongoRepository) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.users.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

// DistinctAttributes enumerates the attribute names currently subscribed to
// across all subscriptions. The checker calls this once per cycle.
func (r *MongoRepository) DistinctAttributes(ctx context.Context) ([]string, error) {
	vals, err := r.subs.Distinct(ctx, "attr", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MongoRepository) FindSubscriptions(ctx context.Context, attr, value string) ([]Subscription, error) {
	cur, err := r.subs.Find(ctx, bson.M{"attr": attr, "value": value})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Subscription{}
	for cur.Next(ctx) {
		var s Subscription
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, cur.Err()
}

func (r *MongoRepository) SubscriberIDs(ctx context.Context, subID string) ([]string, error) {
	opts := options.Find().SetSort(bson.D{{Key: "added", Value: 1}}).SetProjection(bson.M{"user": 1})
	cur, err := r.links.Find(ctx, bson.M{"sub": subID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []string{}
	for cur.Next(ctx) {
		var l Link
		if err := cur.Decode(&l); err != nil {
			return nil, err
		}
		out = append(out, l.User)
	}
	return out, cur.Err()
}

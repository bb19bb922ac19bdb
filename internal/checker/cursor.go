package checker

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cursor is the persisted watermark of the last check. AdvanceAndGetPrevious
// must be one atomic read-modify-write: two concurrent cycles must never
// observe the same previous value.
type Cursor interface {
	AdvanceAndGetPrevious(ctx context.Context, now time.Time) (time.Time, error)
}

const cursorID = "last_check"

// MongoCursor stores the watermark as a single document in the last_check
// collection.
type MongoCursor struct {
	col      *mongo.Collection
	backfill time.Duration
}

// NewMongoCursor creates the cursor over the given database. backfill bounds
// the first poll window when no watermark exists yet.
func NewMongoCursor(db *mongo.Database, backfill time.Duration) *MongoCursor {
	return &MongoCursor{col: db.Collection("last_check"), backfill: backfill}
}

func (c *MongoCursor) AdvanceAndGetPrevious(ctx context.Context, now time.Time) (time.Time, error) {
	filter := bson.M{"_id": cursorID}
	update := bson.M{"$set": bson.M{"time": now}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)
	var doc struct {
		Time time.Time `bson:"time"`
	}
	err := c.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		// first ever run
		return now.Add(-c.backfill), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return doc.Time, nil
}

// MemoryCursor is an in-memory Cursor for unit tests.
type MemoryCursor struct {
	mu       sync.Mutex
	t        time.Time
	backfill time.Duration
}

func NewMemoryCursor(backfill time.Duration) *MemoryCursor {
	return &MemoryCursor{backfill: backfill}
}

func (c *MemoryCursor) AdvanceAndGetPrevious(ctx context.Context, now time.Time) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.t
	c.t = now
	if prev.IsZero() {
		return now.Add(-c.backfill), nil
	}
	return prev, nil
}

// Value returns the current watermark. Test helper.
func (c *MemoryCursor) Value() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

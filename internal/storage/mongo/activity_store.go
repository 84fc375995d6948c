package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cypher-activity/internal/domain"
	"cypher-activity/internal/storage"
)

// collectionName matches the collection written by earlier deployments.
const collectionName = "activityevents"

// ActivityStore implements storage.ActivityStore on a MongoDB collection.
type ActivityStore struct {
	coll *mongo.Collection
	db   *DB
}

// NewActivityStore creates an ActivityStore over the activity events
// collection.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{coll: db.Collection(collectionName), db: db}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// EnsureIndexes creates the query indexes: (addressInvolved, timestamp desc)
// for address-scoped feeds and (timestamp desc) for the global feed.
// Index creation is idempotent.
func (s *ActivityStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "addressInvolved", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create activity indexes: %w", err)
	}
	return nil
}

// InsertBulk adds all events as new documents in one ordered batch.
func (s *ActivityStore) InsertBulk(ctx context.Context, events []*domain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, 0, len(events))
	for _, ev := range events {
		if err := storage.ValidateEvent(ev); err != nil {
			return err
		}
		docs = append(docs, ev)
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert activity events: %w", err)
	}
	return nil
}

// MarkRolledBack flips rollback=true on every event at the block height
// whose rollback is currently false.
func (s *ActivityStore) MarkRolledBack(ctx context.Context, blockHeight int64) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"blockHeight": blockHeight, "rollback": false},
		bson.M{"$set": bson.M{"rollback": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark events rolled back: %w", err)
	}
	return res.ModifiedCount, nil
}

// ListRecent retrieves non-rolled-back events, newest first.
func (s *ActivityStore) ListRecent(ctx context.Context, address string, limit int) ([]*domain.ActivityEvent, error) {
	filter := bson.M{"rollback": false}
	if address != "" {
		filter["addressInvolved"] = address
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find activity events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.ActivityEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode activity events: %w", err)
	}
	return events, nil
}

// Summarize groups non-rolled-back events for the address since the given
// instant by event type.
func (s *ActivityStore) Summarize(ctx context.Context, address string, since time.Time) (domain.ActivitySummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"addressInvolved": address,
			"rollback":        false,
			"timestamp":       bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$eventType",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.ActivitySummary{}, fmt.Errorf("aggregate activity summary: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		EventType domain.EventType `bson:"_id"`
		Count     int64            `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return domain.ActivitySummary{}, fmt.Errorf("decode activity summary: %w", err)
	}

	counts := make(map[domain.EventType]int64, len(groups))
	for _, g := range groups {
		counts[g.EventType] = g.Count
	}
	return domain.SummaryFromCounts(counts), nil
}

// Ping reports store reachability.
func (s *ActivityStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

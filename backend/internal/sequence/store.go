package sequence

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"schoolapi/backend/internal/shared"
)

// MongoCounterStore keeps one document per purpose in the counters
// collection: {_id: purpose, seq: n}.
type MongoCounterStore struct {
	col *mongo.Collection
}

// NewMongoCounterStore creates a counter store on the counters collection
func NewMongoCounterStore(db *mongo.Database) *MongoCounterStore {
	return &MongoCounterStore{col: db.Collection(shared.CollCounters)}
}

// Next performs a single server-side findAndModify with $inc and upsert, so
// concurrent callers always observe distinct values.
func (s *MongoCounterStore) Next(ctx context.Context, purpose string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter shared.SequenceCounter
	err := s.col.FindOneAndUpdate(queryCtx,
		bson.M{"_id": purpose},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}

	return counter.Seq, nil
}

// Current returns the last issued value for purpose without changing it.
func (s *MongoCounterStore) Current(ctx context.Context, purpose string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var counter shared.SequenceCounter
	err := s.col.FindOne(queryCtx, bson.M{"_id": purpose}).Decode(&counter)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	return counter.Seq, err
}

// FieldExists returns an ExistsFunc that checks field == id in col.
func FieldExists(col *mongo.Collection, field string) ExistsFunc {
	return func(ctx context.Context, id string) (bool, error) {
		return shared.Exists(ctx, col, bson.M{field: id})
	}
}

// ============================================================================
// In-memory store
// ============================================================================

// MemoryCounterStore is a mutex-guarded CounterStore for tests and tools.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]int64)}
}

func (s *MemoryCounterStore) Next(ctx context.Context, purpose string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[purpose]++
	return s.counters[purpose], nil
}

func (s *MemoryCounterStore) Current(_ context.Context, purpose string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[purpose], nil
}

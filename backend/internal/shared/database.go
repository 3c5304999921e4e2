// ============================================================================
// backend/internal/shared/database.go
// Shared MongoDB connection, index setup and query helpers
// ============================================================================

package shared

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxIdleTime    time.Duration
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig(uri, database string) *MongoConfig {
	return &MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 20 * time.Second,
		MaxPoolSize:    50,
		MinPoolSize:    5,
		MaxIdleTime:    30 * time.Second,
	}
}

// ConnectMongoDB establishes connection to MongoDB Atlas/Local with proper configuration
func ConnectMongoDB(config *MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("mongo config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(config.ConnectTimeout).
		SetSocketTimeout(30 * time.Second).
		SetHeartbeatInterval(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Printf("INFO: connected to MongoDB (database: %s)", config.Database)

	db := client.Database(config.Database)
	return client, db, nil
}

// DisconnectMongoDB gracefully closes MongoDB connection
func DisconnectMongoDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Println("INFO: disconnected from MongoDB")
	return nil
}

// ============================================================================
// Indexes
// ============================================================================

// EnsureIndexes creates the unique constraints the services rely on. They are
// the backstop for identifier collisions and for the grade upsert key.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		CollUsers: {
			unique(bson.D{{Key: "email", Value: 1}}),
		},
		CollSessions: {
			plain(bson.D{{Key: "token", Value: 1}}),
			plain(bson.D{{Key: "subject_id", Value: 1}}),
		},
		CollStudents: {
			unique(bson.D{{Key: "id_number", Value: 1}}),
			plain(bson.D{{Key: "class_id", Value: 1}}),
		},
		CollSubjects: {
			unique(bson.D{{Key: "name", Value: 1}}),
			unique(bson.D{{Key: "code", Value: 1}}),
		},
		CollAcademics: {
			unique(bson.D{{Key: "academic_id", Value: 1}}),
			unique(bson.D{{Key: "academic_year", Value: 1}}),
		},
		CollTimetables: {
			unique(bson.D{{Key: "timetable_id", Value: 1}}),
			plain(bson.D{{Key: "class_id", Value: 1}, {Key: "day_of_week", Value: 1}}),
		},
		CollGrades: {
			unique(bson.D{{Key: "student_id", Value: 1}, {Key: "class_id", Value: 1}, {Key: "subject_id", Value: 1}}),
		},
		CollExamResults: {
			unique(bson.D{{Key: "exam_id", Value: 1}, {Key: "student_id", Value: 1}, {Key: "subject_id", Value: 1}}),
		},
		CollAttendance: {
			unique(bson.D{{Key: "date", Value: 1}, {Key: "student_id", Value: 1}, {Key: "class_id", Value: 1}, {Key: "subject_id", Value: 1}}),
		},
	}

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(indexCtx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}

	log.Printf("INFO: ensured indexes on %d collections", len(indexes))
	return nil
}

// ============================================================================
// ID Generation Helpers
// ============================================================================

// NewID returns a fresh document identifier
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ============================================================================
// Audit Logging Helper
// ============================================================================

// LogAuditEvent logs an audit event to the audit_logs collection
func LogAuditEvent(ctx context.Context, auditCol *mongo.Collection, actorID, action, resource string, details map[string]interface{}) error {
	if auditCol == nil {
		return fmt.Errorf("audit collection is nil")
	}

	auditDoc := bson.M{
		"_id":       NewID(),
		"timestamp": primitive.NewDateTimeFromTime(time.Now()),
		"actor_id":  actorID,
		"action":    action,
		"resource":  resource,
	}

	if details != nil {
		auditDoc["details"] = details
	}

	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := auditCol.InsertOne(insertCtx, auditDoc)
	if err != nil {
		log.Printf("WARN: failed to log audit event: %v", err)
		return err
	}

	return nil
}

// ============================================================================
// Query Helpers
// ============================================================================

// BuildFindOptions creates common find options with defaults
func BuildFindOptions(limit int64, sortField string, sortOrder int) *options.FindOptions {
	opts := options.Find()

	if limit > 0 {
		opts.SetLimit(limit)
	}

	if sortField != "" {
		opts.SetSort(bson.D{{Key: sortField, Value: sortOrder}})
	}

	return opts
}

// Exists reports whether at least one document matches the filter
func Exists(ctx context.Context, col *mongo.Collection, filter bson.M) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := col.CountDocuments(queryCtx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count documents: %w", err)
	}

	return count > 0, nil
}

// FindAll decodes every document matching the filter into results
func FindAll(ctx context.Context, col *mongo.Collection, filter interface{}, results interface{}, opts ...*options.FindOptions) error {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := col.Find(queryCtx, filter, opts...)
	if err != nil {
		return err
	}
	return cursor.All(queryCtx, results)
}

// ============================================================================
// Time Helpers
// ============================================================================

// ClockMinutes converts "HH:MM" to minutes since midnight
func ClockMinutes(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// TimesOverlap checks if two HH:MM ranges overlap
func TimesOverlap(start1, end1, start2, end2 string) bool {
	s1, err1 := ClockMinutes(start1)
	e1, err2 := ClockMinutes(end1)
	s2, err3 := ClockMinutes(start2)
	e2, err4 := ClockMinutes(end2)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}

	return s1 < e2 && s2 < e1
}

// DayStart truncates t to midnight UTC
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and returns the UTC day start
func ParseDay(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return DayStart(t), nil
}
